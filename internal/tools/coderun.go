// Package tools exposes the relay as an MCP tool server.
package tools

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/runner"
)

const (
	ToolName = "code_run"

	// maxOutput caps the text handed back to the calling model.
	maxOutput = 4000
)

// Runner executes one run request. *runner.Runner implements it.
type Runner interface {
	Run(ctx context.Context, req runner.RunRequest) (*runner.RunResponse, error)
}

// NewServer builds an MCP server with a single code_run tool backed by r.
func NewServer(r Runner, version string) *server.MCPServer {
	s := server.NewMCPServer("runkaro", version)

	var langs []string
	for _, l := range runner.Languages() {
		langs = append(langs, l.Aliases...)
	}

	s.AddTool(mcp.Tool{
		Name:        ToolName,
		Description: fmt.Sprintf("Execute code on a remote runner. Supported languages: %s.", strings.Join(langs, ", ")),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"language": map[string]any{
					"type":        "string",
					"description": "Programming language (python, java, cpp)",
				},
				"code": map[string]any{
					"type":        "string",
					"description": "Source code to execute",
				},
				"stdin": map[string]any{
					"type":        "string",
					"description": "Standard input to provide to the program (optional)",
				},
				"timeout_seconds": map[string]any{
					"type":        "integer",
					"description": "Compile and run timeout in seconds (optional, default 5)",
				},
			},
			Required: []string{"language", "code"},
		},
	}, CodeRunHandler(r))

	return s
}

// CodeRunHandler adapts r to an MCP tool handler. Failures are reported as
// error results, never as protocol errors.
func CodeRunHandler(r Runner) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		if args == nil {
			return errResult("error: invalid arguments"), nil
		}

		language, _ := args["language"].(string)
		code, _ := args["code"].(string)
		stdin, _ := args["stdin"].(string)

		if language == "" {
			return errResult("error: 'language' is required"), nil
		}

		req := runner.RunRequest{Language: language, Code: code, Stdin: stdin}
		if t, ok := args["timeout_seconds"].(float64); ok {
			req.TimeoutSeconds = timeoutArg(t)
		}

		result, err := r.Run(ctx, req)
		if err != nil {
			return errResult(fmt.Sprintf("error: %v", err)), nil
		}

		text := formatResult(result)
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
			IsError: result.TimedOut || (result.ExitCode != nil && *result.ExitCode != 0),
		}, nil
	}
}

// timeoutArg converts a JSON number to whole seconds. Values below one second
// and NaN fall back to the default; large values are capped.
func timeoutArg(t float64) *int {
	if !(t >= 1) {
		return nil
	}
	n := runner.MaxTimeoutSeconds
	if t < float64(n) {
		n = int(t)
	}
	return &n
}

func formatResult(result *runner.RunResponse) string {
	var output strings.Builder
	if result.Stdout != "" {
		output.WriteString(result.Stdout)
	}
	if result.Stderr != "" {
		if output.Len() > 0 {
			output.WriteString("\n")
		}
		output.WriteString("STDERR:\n" + result.Stderr)
	}
	if result.ExitCode != nil && *result.ExitCode != 0 {
		output.WriteString(fmt.Sprintf("\nexit code: %d", *result.ExitCode))
	}

	text := output.String()
	if len(text) > maxOutput {
		cut := maxOutput
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "\n... (output truncated)"
	}
	return text
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
