package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/metrics"
	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/natsvc"
	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/server"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the RunKaro HTTP server",
	Long: `Start the RunKaro HTTP server.

Endpoints:
  GET  /           welcome message
  POST /run        run code: {language, code, stdin?, timeout_seconds?}
  GET  /languages  supported languages
  GET  /metrics    request counters
  GET  /ws         WebSocket variant of /run

When nats.url is configured the relay also answers on <prefix>.RUN.

Examples:
  runkaro serve
  runkaro serve --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	rn := newRunner(cfg, logger)
	logger.Info("forwarding runs", "upstream", cfg.Upstream.URL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional NATS endpoint
	if cfg.NATS.URL != "" {
		closed := make(chan struct{})
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name("runkaro"),
			nats.DrainTimeout(10*time.Second),
			nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
		)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("nats drain failed", "err", err)
				return
			}
			<-closed
		}()

		// In-flight NATS runs finish during Drain instead of being cancelled
		svc, err := natsvc.Start(context.WithoutCancel(ctx), nc, cfg.NATS.SubjectPrefix, rn, logger)
		if err != nil {
			return err
		}
		defer svc.Stop()
	}

	// Determine port
	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	// Run returns after SIGINT/SIGTERM once in-flight requests are done
	srv := server.New(cfg, rn, metrics.New(), logger)
	if err := srv.Run(ctx, port); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
