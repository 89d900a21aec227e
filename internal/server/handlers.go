package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/runner"
)

const welcomeMessage = "Welcome to the Online Code Runner! Use POST /run with {language, code, stdin (optional)}."

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Handlers ---

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": welcomeMessage})
}

func (s *Server) handleListLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, runner.Languages())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncrementRequest()

	if n := s.cfg.Server.MaxBodyBytes; n > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, n)
	}

	var req runner.RunRequest
	if err := decodeJSON(r, &req); err != nil {
		s.metrics.IncrementError()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	resp, err := s.execute(r, req)
	if err != nil {
		writeError(w, runner.StatusCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// execute runs req and records the outcome in the metrics.
func (s *Server) execute(r *http.Request, req runner.RunRequest) (*runner.RunResponse, error) {
	resp, err := s.runner.Run(r.Context(), req)
	switch {
	case runner.IsKind(err, runner.KindUpstream):
		s.metrics.IncrementUpstreamError()
	case err != nil:
		s.metrics.IncrementError()
	case resp.TimedOut:
		s.metrics.IncrementTimeout()
	}
	return resp, err
}
