package httpclient_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florasync/florasync/internal/httpclient"
)

func TestHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		statusCode    int
		url           string
		message       string
		expectedError string
	}{
		{
			name:          "formats all fields",
			statusCode:    404,
			url:           "http://example.com",
			message:       "Not Found",
			expectedError: "HTTP 404 for URL http://example.com: Not Found",
		},
		{
			name:          "formats 500 errors",
			statusCode:    500,
			url:           "http://api.example.com/v1/data",
			message:       "Internal Server Error",
			expectedError: "HTTP 500 for URL http://api.example.com/v1/data: Internal Server Error",
		},
		{
			name:          "handles empty message",
			statusCode:    429,
			url:           "http://example.com",
			message:       "",
			expectedError: "HTTP 429 for URL http://example.com: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := httpclient.NewHTTPError(tt.statusCode, tt.url, tt.message)

			require.Error(t, err)
			assert.Equal(t, tt.expectedError, err.Error())
		})
	}
}

func TestHTTPError_ErrorsAs(t *testing.T) {
	t.Parallel()

	err := httpclient.NewHTTPError(503, "http://example.com", "Service Unavailable")
	wrapped := errors.Join(errors.New("fetch page 3"), err)

	var httpErr *httpclient.HTTPError
	require.ErrorAs(t, wrapped, &httpErr)
	assert.Equal(t, 503, httpErr.StatusCode)
	assert.Zero(t, httpErr.RetryAfter)
}

func TestHTTPError_RetryAfterPreserved(t *testing.T) {
	t.Parallel()

	err := &httpclient.HTTPError{
		StatusCode: 429,
		URL:        "http://example.com",
		Message:    "Too Many Requests",
		RetryAfter: 90 * time.Second,
	}

	var httpErr *httpclient.HTTPError
	require.ErrorAs(t, error(err), &httpErr)
	assert.Equal(t, 90*time.Second, httpErr.RetryAfter)
}
