package sandbox

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCodeBlock is returned when a completion has no fenced code.
	ErrMissingCodeBlock = errors.New("invalid completion (missing code block)")
	// ErrUnsupportedLanguage is returned for languages outside SupportedLanguages.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrGatewayTimeout marks a 504 answer, the only retried failure.
	ErrGatewayTimeout = errors.New("gateway timeout (504)")
)

// StatusError is returned for non-2xx answers other than 504.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("sandbox: HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("sandbox: HTTP %d", e.StatusCode)
}
