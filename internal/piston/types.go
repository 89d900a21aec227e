package piston

import "encoding/json"

// File is a single source file sent to the execute endpoint.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ExecuteRequest is the body of POST /api/v2/piston/execute.
type ExecuteRequest struct {
	Language       string   `json:"language"`
	Version        string   `json:"version"`
	Files          []File   `json:"files"`
	Stdin          string   `json:"stdin"`
	Args           []string `json:"args"`
	CompileTimeout int      `json:"compile_timeout"` // milliseconds
	RunTimeout     int      `json:"run_timeout"`     // milliseconds
}

// Stage is the result of one execution stage (compile or run).
// Code is kept raw so callers can tell an absent code from an explicit null.
type Stage struct {
	Stdout string          `json:"stdout"`
	Stderr string          `json:"stderr"`
	Code   json.RawMessage `json:"code,omitempty"`
	Signal *string         `json:"signal,omitempty"`
}

// ExecuteResponse is the decoded reply of a successful execute call.
type ExecuteResponse struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Run      *Stage `json:"run,omitempty"`
	Compile  *Stage `json:"compile,omitempty"`
}
