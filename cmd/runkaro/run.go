package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/runner"
)

var (
	langFlag      string
	stdinFileFlag string
	timeoutFlag   int
	outputFlag    string
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a source file on the upstream and print the result",
	Long: `Send a single source file to the configured Piston endpoint and print
its output. Use "-" to read the source from standard input.

The process exits with the program's exit code (124 when it timed out).

Examples:
  runkaro run --lang python hello.py
  runkaro run --lang cpp --stdin-file input.txt main.cpp
  runkaro run --lang java --output yaml Main.java`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&langFlag, "lang", "l", "", "Language: python, java, cpp (c++)")
	runCmd.Flags().StringVar(&stdinFileFlag, "stdin-file", "", "File passed to the program as standard input")
	runCmd.Flags().IntVar(&timeoutFlag, "timeout", 0, "Compile and run timeout in seconds (default from config)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", "text", "Output format: text, json or yaml")
	runCmd.MarkFlagRequired("lang")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	code, err := readSource(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	req := runner.RunRequest{Language: langFlag, Code: code}
	if stdinFileFlag != "" {
		data, err := os.ReadFile(stdinFileFlag)
		if err != nil {
			return fmt.Errorf("reading stdin file: %w", err)
		}
		req.Stdin = string(data)
	}
	if timeoutFlag > 0 {
		req.TimeoutSeconds = &timeoutFlag
	}

	resp, err := newRunner(cfg, logger).Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	if err := printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), resp, outputFlag); err != nil {
		return err
	}
	if c := resultExitCode(resp); c != 0 {
		return exitCodeError{code: c}
	}
	return nil
}

func readSource(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading source: %w", err)
	}
	return string(data), nil
}

func printResult(stdout, stderr io.Writer, resp *runner.RunResponse, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "yaml":
		enc := yaml.NewEncoder(stdout)
		defer enc.Close()
		return enc.Encode(resp)
	case "text", "":
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}

	fmt.Fprint(stdout, resp.Stdout)
	if resp.Stderr != "" {
		color.New(color.FgRed).Fprint(stderr, resp.Stderr)
	}
	switch {
	case resp.TimedOut:
		color.New(color.FgYellow).Fprintln(stderr, "\n[timed out]")
	case resp.ExitCode != nil && *resp.ExitCode != 0:
		color.New(color.FgYellow).Fprintf(stderr, "\n[exit code %d]\n", *resp.ExitCode)
	}
	return nil
}

func resultExitCode(resp *runner.RunResponse) int {
	switch {
	case resp.TimedOut:
		return 124
	case resp.ExitCode != nil:
		return *resp.ExitCode
	}
	return 0
}
