package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/florasync/florasync/internal/config"
	"github.com/florasync/florasync/internal/httpclient"
	"github.com/florasync/florasync/internal/resilience"
)

// ErrRateLimited is returned when the local rate limiter denies a
// request before any network I/O.
var ErrRateLimited = errors.New("local rate limit exceeded")

// ErrNotConfigured is returned when the provider has no API key. No
// network I/O is attempted and no state is mutated.
var ErrNotConfigured = errors.New("provider is not configured")

// Client is the resilient client core for one provider. It is the only
// component that mutates the provider's RequestStats and reports
// outcomes to the circuit breaker.
type Client struct {
	name     string
	endpoint string
	apiKey   string

	http    httpclient.Client
	codec   Codec
	limiter *resilience.RateLimiter
	breaker *resilience.Breaker
	retry   *resilience.RetryPolicy

	log *zap.SugaredLogger

	// sleep is ctx-aware and injectable so tests run without real delays
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	stats RequestStats
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client, used by tests
func WithHTTPClient(hc httpclient.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithSleep overrides the retry sleep function, used by tests
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// NewClient builds a provider client from configuration. A missing API
// key is not an error here; the client is constructed unconfigured and
// every operation returns ErrNotConfigured.
func NewClient(cfg *config.ProviderConfig, log *zap.SugaredLogger, opts ...ClientOption) (*Client, error) {
	codec, err := NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}

	apiKey, err := cfg.GetAPIKey()
	if err != nil {
		return nil, err
	}

	var perMinute, perDay int
	if cfg.RateLimit != nil {
		perMinute = cfg.RateLimit.PerMinute
		perDay = cfg.RateLimit.PerDay
	}

	var breakerOpts []resilience.BreakerOption
	if cfg.Breaker != nil {
		if cfg.Breaker.FailureThreshold > 0 {
			breakerOpts = append(breakerOpts, resilience.WithFailureThreshold(cfg.Breaker.FailureThreshold))
		}
		if cfg.Breaker.Cooldown != "" {
			// Validity checked at config load
			cooldown, _ := time.ParseDuration(cfg.Breaker.Cooldown)
			breakerOpts = append(breakerOpts, resilience.WithCooldown(cooldown))
		}
	}

	var retryOpts []resilience.RetryPolicyOption
	if cfg.Retry != nil {
		if cfg.Retry.MaxAttempts > 0 {
			retryOpts = append(retryOpts, resilience.WithMaxAttempts(cfg.Retry.MaxAttempts))
		}
		var initial, maxDelay time.Duration
		if cfg.Retry.InitialDelay != "" {
			initial, _ = time.ParseDuration(cfg.Retry.InitialDelay)
		}
		if cfg.Retry.MaxDelay != "" {
			maxDelay, _ = time.ParseDuration(cfg.Retry.MaxDelay)
		}
		if initial > 0 || maxDelay > 0 {
			retryOpts = append(retryOpts, resilience.WithDelayBounds(initial, maxDelay))
		}
	}

	c := &Client{
		name:     cfg.Name,
		endpoint: cfg.Endpoint,
		apiKey:   apiKey,
		http:     httpclient.NewDefaultClient(0),
		codec:    codec,
		limiter:  resilience.NewRateLimiter(perMinute, perDay),
		breaker:  resilience.NewBreaker(breakerOpts...),
		retry:    resilience.NewRetryPolicy(retryOpts...),
		log:      log.Named(cfg.Name),
		sleep:    sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return c.name
}

// IsConfigured reports whether the provider has credentials. When
// false, all operations are no-ops returning ErrNotConfigured.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// FetchPage retrieves one page of the provider's plant listing
func (c *Client) FetchPage(ctx context.Context, page, size int) (*Page, error) {
	body, err := c.do(ctx, c.codec.PageURL(c.endpoint, c.apiKey, page, size))
	if err != nil {
		return nil, err
	}

	decoded, err := c.codec.DecodePage(body)
	if err != nil {
		return nil, fmt.Errorf("provider %s page %d: %w", c.name, page, err)
	}
	decoded.Number = page
	return decoded, nil
}

// Enrich looks up a single plant by name. Returns (nil, nil) when the
// provider has no match.
func (c *Client) Enrich(ctx context.Context, name string) (*Enriched, error) {
	body, err := c.do(ctx, c.codec.EnrichURL(c.endpoint, c.apiKey, name))
	if err != nil {
		return nil, err
	}

	enriched, err := c.codec.DecodeEnrichment(body)
	if err != nil {
		return nil, fmt.Errorf("provider %s enrich %q: %w", c.name, name, err)
	}
	return enriched, nil
}

// Stats returns a snapshot of the provider's request counters
func (c *Client) Stats() RequestStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// CircuitState returns a snapshot of the provider's circuit breaker
func (c *Client) CircuitState() resilience.BreakerSnapshot {
	return c.breaker.Snapshot()
}

// Reset zeroes the request counters, the circuit breaker, and the rate
// limiter windows. Admin-triggered only.
func (c *Client) Reset() {
	c.mu.Lock()
	c.stats = RequestStats{}
	c.mu.Unlock()
	c.breaker.Reset()
	c.limiter.Reset()
	c.log.Infow("provider state reset")
}

// do runs one guarded HTTP GET: rate limiter, then circuit breaker,
// then the request with bounded retries. The final outcome is reported
// back to the breaker.
func (c *Client) do(ctx context.Context, url string) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	if !c.limiter.Allow() {
		c.mu.Lock()
		c.stats.RateLimitErrors++
		c.mu.Unlock()
		return nil, ErrRateLimited
	}

	if err := c.breaker.Acquire(); err != nil {
		c.log.Warnw("request short-circuited", "url", url)
		return nil, err
	}

	body, err := c.attemptWithRetries(ctx, url)
	if err != nil {
		c.mu.Lock()
		c.stats.FailedRequests++
		c.mu.Unlock()
		if c.breaker.Record(false) {
			c.mu.Lock()
			c.stats.CircuitBreakerTrips++
			c.mu.Unlock()
			c.log.Errorw("circuit breaker tripped", "url", url, "error", err)
		}
		return nil, err
	}

	c.mu.Lock()
	c.stats.SuccessfulRequests++
	c.mu.Unlock()
	c.breaker.Record(true)
	return body, nil
}

// attemptWithRetries issues the request up to the retry policy's
// attempt bound, sleeping between attempts. The last error is returned
// when attempts are exhausted.
func (c *Client) attemptWithRetries(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts(); attempt++ {
		c.mu.Lock()
		c.stats.TotalRequests++
		c.mu.Unlock()

		body, err := c.http.Get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		class := c.retry.Classify(err)
		c.recordAttemptError(err, class)

		if !class.Retryable() || attempt == c.retry.MaxAttempts() {
			return nil, lastErr
		}

		c.mu.Lock()
		if attempt == 1 {
			c.stats.RetriedRequests++
		}
		c.stats.TotalRetries++
		c.mu.Unlock()

		delay := c.retry.NextDelay(attempt, err)
		c.log.Debugw("retrying request", "url", url, "attempt", attempt, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// recordAttemptError attributes one failed attempt to the right counter
func (c *Client) recordAttemptError(err error, class resilience.Class) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch class {
	case resilience.ClassTransient:
		if resilience.IsTimeout(err) {
			c.stats.TimeoutErrors++
		} else {
			c.stats.NetworkErrors++
		}
	case resilience.ClassUpstreamRateLimited:
		c.stats.RateLimitErrors++
	case resilience.ClassUpstreamServerError, resilience.ClassNonRetryable:
		// Counted in FailedRequests when the call resolves
	}
}

// IsNotFound reports whether an error is an upstream 404, which
// enrichment treats as "no match" rather than a failure.
func IsNotFound(err error) bool {
	var httpErr *httpclient.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
