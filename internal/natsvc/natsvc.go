// Package natsvc exposes the relay as a NATS micro service.
package natsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/piston"
	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/runner"
)

const (
	Name    = "RunKaro"
	Version = "0.1.0"
)

// Runner executes one run request. *runner.Runner implements it.
type Runner interface {
	Run(ctx context.Context, req runner.RunRequest) (*runner.RunResponse, error)
}

// Service answers run requests on <prefix>.RUN and languages on <prefix>.LANGUAGES.
type Service struct {
	ctx    context.Context
	runner Runner
	logger *slog.Logger
	svc    micro.Service
}

// Start registers the micro service on nc. Requests in flight use ctx.
func Start(ctx context.Context, nc *nats.Conn, prefix string, r Runner, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{ctx: ctx, runner: r, logger: logger}

	svc, err := micro.AddService(nc, micro.Config{
		Name:        Name,
		Description: "Relays code-execution requests to the Piston API.",
		Version:     Version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating nats micro service: %w", err)
	}

	err = svc.AddEndpoint(
		"RUN",
		s.logHandler(s.handleRun),
		micro.WithEndpointSubject(prefix+".RUN"),
		micro.WithEndpointMetadata(map[string]string{
			"request": `{"language": "string", "code": "string", "stdin": "string", "timeout_seconds": "int"}`,
		}),
	)
	if err != nil {
		svc.Stop()
		return nil, fmt.Errorf("adding RUN endpoint: %w", err)
	}

	err = svc.AddEndpoint(
		"LANGUAGES",
		s.logHandler(s.handleLanguages),
		micro.WithEndpointSubject(prefix+".LANGUAGES"),
	)
	if err != nil {
		svc.Stop()
		return nil, fmt.Errorf("adding LANGUAGES endpoint: %w", err)
	}

	s.svc = svc
	logger.Info("nats micro service started", "subject", prefix+".RUN")
	return s, nil
}

// Stop drains the service endpoints.
func (s *Service) Stop() error {
	return s.svc.Stop()
}

func (s *Service) logHandler(fn func(micro.Request)) micro.Handler {
	return micro.HandlerFunc(func(r micro.Request) {
		s.logger.Debug("nats request", "subject", r.Subject())
		fn(r)
	})
}

func (s *Service) handleRun(r micro.Request) {
	id := r.Headers().Get("X-Request-ID")
	if id == "" {
		id = uuid.New().String()
	}
	ctx := piston.WithRequestID(s.ctx, id)

	resp, status, err := s.process(ctx, r.Data())
	if err != nil {
		if err := r.Error(strconv.Itoa(status), err.Error(), nil); err != nil {
			s.logger.Warn("nats error response failed", "err", err)
		}
		return
	}
	if err := r.RespondJSON(resp); err != nil {
		s.logger.Warn("nats run response failed", "err", err)
	}
}

func (s *Service) handleLanguages(r micro.Request) {
	if err := r.RespondJSON(runner.Languages()); err != nil {
		s.logger.Warn("nats languages response failed", "err", err)
	}
}

// process decodes one run request and executes it. On failure it returns the
// HTTP-equivalent status used as the micro error code.
func (s *Service) process(ctx context.Context, data []byte) (*runner.RunResponse, int, error) {
	var req runner.RunRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err)
	}

	resp, err := s.runner.Run(ctx, req)
	if err != nil {
		return nil, runner.StatusCode(err), err
	}
	return resp, 0, nil
}
