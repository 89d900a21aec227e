package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/config"
	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/logging"
	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/piston"
	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/runner"
)

const version = "0.1.0"

var (
	configFlag   string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "runkaro",
	Short: "RunKaro - online code runner backed by the Piston API",
	Long: `RunKaro accepts code-execution requests (python, java, cpp), forwards them
to a Piston execute endpoint and returns stdout, stderr and the exit code.

Run "runkaro serve" for the HTTP API or "runkaro run" to execute a single file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: ./runkaro.yaml or $HOME/.runkaro/runkaro.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

// exitCodeError carries a process exit status without printing anything.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ec exitCodeError
		if errors.As(err, &ec) {
			os.Exit(ec.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads config and installs the logger shared by every command.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}

	logger, err := logging.Setup(os.Stderr, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newRunner(cfg *config.Config, logger *slog.Logger) *runner.Runner {
	client := piston.NewClient(cfg.Upstream.URL, piston.WithAPIKey(cfg.Upstream.APIKey))
	return runner.New(client,
		runner.WithDefaultTimeout(cfg.Run.DefaultTimeoutSeconds),
		runner.WithGrace(cfg.Run.TimeoutGrace),
		runner.WithLogger(logger),
	)
}
