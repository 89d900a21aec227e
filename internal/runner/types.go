package runner

// RunRequest is an inbound code-execution request.
type RunRequest struct {
	Language       string `json:"language" yaml:"language"`
	Code           string `json:"code" yaml:"code"`
	Stdin          string `json:"stdin,omitempty" yaml:"stdin,omitempty"`
	TimeoutSeconds *int   `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// RunResponse is the normalized result of one upstream execution.
// ExitCode is nil when the run timed out or the upstream reported no code.
type RunResponse struct {
	Stdout   string `json:"stdout" yaml:"stdout"`
	Stderr   string `json:"stderr" yaml:"stderr"`
	ExitCode *int   `json:"exit_code" yaml:"exit_code"`
	TimedOut bool   `json:"timed_out" yaml:"timed_out"`
}

// TimedOutMessage is the stderr of a run that hit the client-side deadline.
const TimedOutMessage = "Execution timed out."

func timedOutResponse() *RunResponse {
	return &RunResponse{Stderr: TimedOutMessage, TimedOut: true}
}
