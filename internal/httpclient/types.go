package httpclient

import (
	"fmt"
	"time"
)

// HTTPError represents an HTTP error response from an upstream provider
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string

	// RetryAfter is the parsed Retry-After hint for 429 responses,
	// zero when the upstream did not provide one
	RetryAfter time.Duration
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}
