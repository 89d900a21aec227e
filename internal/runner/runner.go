// Package runner translates run requests into upstream execute calls and
// normalizes what comes back.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/piston"
)

const (
	// DefaultTimeoutSeconds applies when a request carries no timeout.
	DefaultTimeoutSeconds = 5
	// DefaultGrace is added to the run timeout to form the client-side deadline.
	DefaultGrace = 3 * time.Second
	// MaxTimeoutSeconds caps timeout_seconds so the millisecond budget fits a
	// 32-bit int and the deadline never overflows.
	MaxTimeoutSeconds = 3600
)

// Executor performs one upstream execute call.
type Executor interface {
	Execute(ctx context.Context, req piston.ExecuteRequest) (*piston.ExecuteResponse, error)
}

// Runner forwards run requests to an Executor. It holds no per-request state
// and is safe for concurrent use.
type Runner struct {
	exec           Executor
	defaultTimeout int
	grace          time.Duration
	logger         *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithDefaultTimeout sets the timeout used when a request omits timeout_seconds.
func WithDefaultTimeout(seconds int) Option {
	return func(r *Runner) {
		if seconds > 0 {
			r.defaultTimeout = ClampTimeout(seconds)
		}
	}
}

// WithGrace sets the slack added on top of the run timeout before giving up
// on the upstream.
func WithGrace(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.grace = d
		}
	}
}

// WithLogger sets the logger used for upstream failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a Runner over the given executor.
func New(exec Executor, opts ...Option) *Runner {
	r := &Runner{
		exec:           exec,
		defaultTimeout: DefaultTimeoutSeconds,
		grace:          DefaultGrace,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes req upstream with a single attempt. A deadline hit is reported
// as a timed-out response, not an error; every other failure is an *Error.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunResponse, error) {
	lang, err := Resolve(req.Language)
	if err != nil {
		return nil, err
	}

	seconds := r.timeoutSeconds(req)
	payload := buildPayload(lang, req, seconds)

	ctx, cancel := context.WithTimeout(ctx, r.Deadline(seconds))
	defer cancel()

	resp, err := r.exec.Execute(ctx, payload)
	if err != nil {
		log := r.logger.With("language", lang.Runtime, "request_id", piston.RequestIDFromContext(ctx))

		var se *piston.StatusError
		switch {
		case errors.As(err, &se):
			log.Warn("upstream rejected run", "status", se.StatusCode)
			return nil, &Error{Kind: KindUpstream, Detail: "Piston API error: " + se.Body, Err: err}
		case errors.Is(ctx.Err(), context.DeadlineExceeded) || piston.IsTimeout(err):
			log.Warn("upstream timed out", "timeout_seconds", seconds)
			return timedOutResponse(), nil
		default:
			log.Error("upstream call failed", "err", err)
			return nil, internalError(err)
		}
	}

	out, err := normalize(resp)
	if err != nil {
		return nil, internalError(err)
	}
	return out, nil
}

// Deadline is the client-side bound for a run of the given timeout.
func (r *Runner) Deadline(seconds int) time.Duration {
	return time.Duration(ClampTimeout(seconds))*time.Second + r.grace
}

func (r *Runner) timeoutSeconds(req RunRequest) int {
	if req.TimeoutSeconds == nil || *req.TimeoutSeconds <= 0 {
		return r.defaultTimeout
	}
	return ClampTimeout(*req.TimeoutSeconds)
}

// ClampTimeout bounds seconds to MaxTimeoutSeconds.
func ClampTimeout(seconds int) int {
	return min(seconds, MaxTimeoutSeconds)
}

// buildPayload uses one budget for both compile and run.
func buildPayload(lang Language, req RunRequest, seconds int) piston.ExecuteRequest {
	ms := seconds * 1000
	return piston.ExecuteRequest{
		Language:       lang.Runtime,
		Version:        lang.Version,
		Files:          []piston.File{{Name: lang.Filename, Content: req.Code}},
		Stdin:          req.Stdin,
		Args:           []string{},
		CompileTimeout: ms,
		RunTimeout:     ms,
	}
}

// normalize maps the run stage onto RunResponse. A missing run stage or
// missing code yields exit code 0; an explicit null code stays nil.
func normalize(resp *piston.ExecuteResponse) (*RunResponse, error) {
	out := &RunResponse{}
	run := resp.Run
	if run == nil {
		run = &piston.Stage{}
	}
	out.Stdout = run.Stdout
	out.Stderr = run.Stderr

	code := bytes.TrimSpace(run.Code)
	switch {
	case len(code) == 0:
		zero := 0
		out.ExitCode = &zero
	case bytes.Equal(code, []byte("null")):
	default:
		var n int
		if err := json.Unmarshal(code, &n); err != nil {
			return nil, fmt.Errorf("decoding exit code %s: %w", code, err)
		}
		out.ExitCode = &n
	}
	return out, nil
}
