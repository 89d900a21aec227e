package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/tools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the code_run tool over MCP stdio",
	Long: `Serve a Model Context Protocol tool server on stdin/stdout with a single
code_run tool (language, code, stdin, timeout_seconds). Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		return server.ServeStdio(tools.NewServer(newRunner(cfg, logger), version))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
