package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/florasync/florasync/internal/httpclient"
)

// timeoutErr implements net.Error the way http.Client surfaces timeouts
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestRetryPolicy_Classify(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy()

	tests := []struct {
		name     string
		err      error
		expected Class
	}{
		{
			name:     "HTTP 429 is upstream rate limited",
			err:      httpclient.NewHTTPError(429, "http://api/plants", "Too Many Requests"),
			expected: ClassUpstreamRateLimited,
		},
		{
			name:     "HTTP 500 is upstream server error",
			err:      httpclient.NewHTTPError(500, "http://api/plants", "Internal Server Error"),
			expected: ClassUpstreamServerError,
		},
		{
			name:     "HTTP 503 is upstream server error",
			err:      httpclient.NewHTTPError(503, "http://api/plants", "Service Unavailable"),
			expected: ClassUpstreamServerError,
		},
		{
			name:     "HTTP 404 is non-retryable",
			err:      httpclient.NewHTTPError(404, "http://api/plants", "Not Found"),
			expected: ClassNonRetryable,
		},
		{
			name:     "HTTP 401 is non-retryable",
			err:      httpclient.NewHTTPError(401, "http://api/plants", "Unauthorized"),
			expected: ClassNonRetryable,
		},
		{
			name:     "wrapped HTTP error keeps its class",
			err:      fmt.Errorf("fetch page 3: %w", httpclient.NewHTTPError(502, "http://api/plants", "Bad Gateway")),
			expected: ClassUpstreamServerError,
		},
		{
			name:     "network timeout is transient",
			err:      timeoutErr{},
			expected: ClassTransient,
		},
		{
			name:     "context deadline is transient",
			err:      context.DeadlineExceeded,
			expected: ClassTransient,
		},
		{
			name:     "decode error is non-retryable",
			err:      errors.New("unexpected payload shape"),
			expected: ClassNonRetryable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, p.Classify(tt.err))
		})
	}
}

func TestClass_Retryable(t *testing.T) {
	t.Parallel()

	assert.False(t, ClassNonRetryable.Retryable())
	assert.True(t, ClassTransient.Retryable())
	assert.True(t, ClassUpstreamRateLimited.Retryable())
	assert.True(t, ClassUpstreamServerError.Retryable())
}

func TestRetryPolicy_NextDelayHonorsRetryAfter(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy()
	err := &httpclient.HTTPError{
		StatusCode: 429,
		URL:        "http://api/plants",
		Message:    "Too Many Requests",
		RetryAfter: 7 * time.Second,
	}

	assert.Equal(t, 7*time.Second, p.NextDelay(1, err))
	assert.Equal(t, 7*time.Second, p.NextDelay(2, err))
}

func TestRetryPolicy_NextDelayGrowsWithAttempts(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(WithDelayBounds(time.Second, time.Minute))
	err := httpclient.NewHTTPError(500, "http://api/plants", "Internal Server Error")

	// Jitter makes exact values nondeterministic; bound each attempt's
	// delay by the exponential envelope instead.
	for attempt := 1; attempt <= 4; attempt++ {
		delay := p.NextDelay(attempt, err)
		upper := time.Duration(float64(time.Second) * pow(1.5, attempt) * 1.5)
		assert.Greater(t, delay, time.Duration(0), "attempt %d", attempt)
		assert.LessOrEqual(t, delay, upper, "attempt %d", attempt)
	}
}

func TestRetryPolicy_MaxAttempts(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, NewRetryPolicy().MaxAttempts())
	assert.Equal(t, 5, NewRetryPolicy(WithMaxAttempts(5)).MaxAttempts())
}

func pow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
