package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/florasync/florasync/internal/httpclient"
)

// Class categorizes a provider call failure for retry purposes
type Class int

const (
	// ClassNonRetryable means the call must not be retried (4xx other than 429)
	ClassNonRetryable Class = iota

	// ClassTransient covers network errors and timeouts
	ClassTransient

	// ClassUpstreamRateLimited is an HTTP 429 from the provider
	ClassUpstreamRateLimited

	// ClassUpstreamServerError is an HTTP 5xx from the provider
	ClassUpstreamServerError
)

// Retryable reports whether the class permits another attempt
func (c Class) Retryable() bool {
	return c != ClassNonRetryable
}

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 30 * time.Second
)

// RetryPolicy classifies provider call failures and computes backoff delays
type RetryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// RetryPolicyOption configures a RetryPolicy
type RetryPolicyOption func(*RetryPolicy)

// WithMaxAttempts sets the total attempt bound including the first attempt
func WithMaxAttempts(n int) RetryPolicyOption {
	return func(p *RetryPolicy) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithDelayBounds sets the initial and maximum backoff delays
func WithDelayBounds(initial, maxDelay time.Duration) RetryPolicyOption {
	return func(p *RetryPolicy) {
		if initial > 0 {
			p.initialDelay = initial
		}
		if maxDelay > 0 {
			p.maxDelay = maxDelay
		}
	}
}

// NewRetryPolicy creates a retry policy with bounded exponential backoff
func NewRetryPolicy(opts ...RetryPolicyOption) *RetryPolicy {
	p := &RetryPolicy{
		maxAttempts:  defaultMaxAttempts,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxAttempts returns the total attempt bound including the first attempt
func (p *RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// Classify maps an error from a provider call to a retry class
func (*RetryPolicy) Classify(err error) Class {
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return ClassUpstreamRateLimited
		case httpErr.StatusCode >= 500:
			return ClassUpstreamServerError
		default:
			return ClassNonRetryable
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	// Unwrapped transport failures (connection refused, DNS) surface as
	// *url.Error which implements net.Error, so anything left here is a
	// programming or decode error and retrying will not help.
	return ClassNonRetryable
}

// IsTimeout reports whether a transient error is a timeout rather than
// a general network failure. Used to attribute stats counters.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// NextDelay computes the backoff delay before the given retry attempt.
// attempt is 1-based: the delay before the first retry is NextDelay(1, err).
// A 429 with an upstream Retry-After hint honors the hint; everything
// else uses exponential backoff with jitter.
func (p *RetryPolicy) NextDelay(attempt int, err error) time.Duration {
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) &&
		httpErr.StatusCode == http.StatusTooManyRequests &&
		httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialDelay
	b.MaxInterval = p.maxDelay

	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
