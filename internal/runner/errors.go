package runner

import (
	"errors"
	"net/http"
)

// Kind classifies a failed run.
type Kind int

const (
	// KindInternal is an unexpected local or network failure.
	KindInternal Kind = iota
	// KindUnsupportedLanguage means the request named a language outside the table.
	KindUnsupportedLanguage
	// KindUpstream means the execution API answered with a non-2xx status.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedLanguage:
		return "unsupported_language"
	case KindUpstream:
		return "upstream_error"
	default:
		return "internal_error"
	}
}

// Error is the only error type Runner.Run returns.
type Error struct {
	Kind   Kind
	Detail string // client-facing message
	Err    error
}

func (e *Error) Error() string {
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status is the HTTP status the error maps to.
func (e *Error) Status() int {
	if e.Kind == KindUnsupportedLanguage {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// StatusCode maps any error to an HTTP status; errors that are not *Error are 500.
func StatusCode(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.Status()
	}
	return http.StatusInternalServerError
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == k
}

func internalError(err error) *Error {
	return &Error{Kind: KindInternal, Detail: err.Error(), Err: err}
}
