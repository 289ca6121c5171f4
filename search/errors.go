package search

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is returned when no SerpAPI key is configured.
	ErrMissingAPIKey = errors.New("serpapi key not configured")
	// ErrInvalidAPIKey maps HTTP 401.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrUnauthorized maps HTTP 403.
	ErrUnauthorized = errors.New("api key not authorized for this request")
	// ErrRateLimited maps HTTP 429.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("query must not be empty")
)

// APIError carries an error reported in the response body.
type APIError struct {
	Message string
}

func (e *APIError) Error() string { return "search api error: " + e.Message }

// HTTPError is returned for unexpected status codes.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string { return fmt.Sprintf("search http error %d", e.StatusCode) }
