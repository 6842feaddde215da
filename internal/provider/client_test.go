package provider

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/florasync/florasync/internal/config"
	"github.com/florasync/florasync/internal/httpclient"
	"github.com/florasync/florasync/internal/resilience"
)

// fakeHTTP returns scripted responses in order, repeating the last one
type fakeHTTP struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	body []byte
	err  error
}

func (f *fakeHTTP) Get(_ context.Context, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return f.responses[idx].body, f.responses[idx].err
}

func (f *fakeHTTP) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testProviderConfig(t *testing.T) *config.ProviderConfig {
	t.Helper()

	keyFile := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(keyFile, []byte("test-key\n"), 0o600))

	return &config.ProviderConfig{
		Name:       "perenual",
		Codec:      config.CodecPerenual,
		Endpoint:   "https://perenual.test/api",
		APIKeyFile: keyFile,
	}
}

func newTestClient(t *testing.T, cfg *config.ProviderConfig, http *fakeHTTP) *Client {
	t.Helper()

	c, err := NewClient(cfg, zap.NewNop().Sugar(),
		WithHTTPClient(http),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	require.NoError(t, err)
	return c
}

const emptyPage = `{"data": []}`

const singleItemPage = `{"data": [{"id": 1, "common_name": "Basil", "scientific_name": ["Ocimum basilicum"], "edible_leaf": true}]}`

func TestClient_FetchPageSuccess(t *testing.T) {
	t.Parallel()

	http := &fakeHTTP{responses: []fakeResponse{{body: []byte(singleItemPage)}}}
	c := newTestClient(t, testProviderConfig(t), http)

	page, err := c.FetchPage(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Number)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Basil", page.Items[0].CommonName)

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.TotalRequests)
	assert.EqualValues(t, 1, stats.SuccessfulRequests)
	assert.EqualValues(t, 0, stats.FailedRequests)
}

func TestClient_RetriesServerErrorThenSucceeds(t *testing.T) {
	t.Parallel()

	http := &fakeHTTP{responses: []fakeResponse{
		{err: httpclient.NewHTTPError(502, "u", "Bad Gateway")},
		{body: []byte(singleItemPage)},
	}}
	c := newTestClient(t, testProviderConfig(t), http)

	_, err := c.FetchPage(context.Background(), 1, 20)
	require.NoError(t, err)

	stats := c.Stats()
	assert.EqualValues(t, 2, stats.TotalRequests)
	assert.EqualValues(t, 1, stats.SuccessfulRequests)
	assert.EqualValues(t, 1, stats.RetriedRequests)
	assert.EqualValues(t, 1, stats.TotalRetries)
	assert.EqualValues(t, 0, stats.FailedRequests)
}

func TestClient_ClientErrorFailsImmediately(t *testing.T) {
	t.Parallel()

	http := &fakeHTTP{responses: []fakeResponse{
		{err: httpclient.NewHTTPError(404, "u", "Not Found")},
	}}
	c := newTestClient(t, testProviderConfig(t), http)

	_, err := c.FetchPage(context.Background(), 1, 20)
	require.Error(t, err)
	assert.Equal(t, 1, http.callCount(), "4xx must not be retried")

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.FailedRequests)
	assert.EqualValues(t, 0, stats.TotalRetries)
}

func TestClient_ExhaustedRetriesSurfaceLastError(t *testing.T) {
	t.Parallel()

	http := &fakeHTTP{responses: []fakeResponse{
		{err: httpclient.NewHTTPError(500, "u", "Internal Server Error")},
	}}
	c := newTestClient(t, testProviderConfig(t), http)

	_, err := c.FetchPage(context.Background(), 1, 20)
	require.Error(t, err)

	var httpErr *httpclient.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, httpErr.StatusCode)

	assert.Equal(t, 3, http.callCount(), "bounded attempts")
	stats := c.Stats()
	assert.EqualValues(t, 3, stats.TotalRequests)
	assert.EqualValues(t, 1, stats.FailedRequests)
	assert.EqualValues(t, 2, stats.TotalRetries)
}

func TestClient_RetryAfterHintIsHonored(t *testing.T) {
	t.Parallel()

	http := &fakeHTTP{responses: []fakeResponse{
		{err: &httpclient.HTTPError{StatusCode: 429, Message: "Too Many Requests", RetryAfter: 3 * time.Second}},
		{body: []byte(emptyPage)},
	}}

	var slept []time.Duration
	cfg := testProviderConfig(t)
	c, err := NewClient(cfg, zap.NewNop().Sugar(),
		WithHTTPClient(http),
		WithSleep(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}),
	)
	require.NoError(t, err)

	_, err = c.FetchPage(context.Background(), 1, 20)
	require.NoError(t, err)
	require.Len(t, slept, 1)
	assert.Equal(t, 3*time.Second, slept[0])

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.RateLimitErrors)
}

func TestClient_BreakerTripsAndShortCircuits(t *testing.T) {
	t.Parallel()

	cfg := testProviderConfig(t)
	cfg.Breaker = &config.BreakerConfig{FailureThreshold: 2, Cooldown: "60s"}
	cfg.Retry = &config.RetryConfig{MaxAttempts: 1}

	http := &fakeHTTP{responses: []fakeResponse{
		{err: httpclient.NewHTTPError(500, "u", "Internal Server Error")},
	}}
	c := newTestClient(t, cfg, http)

	for i := 0; i < 2; i++ {
		_, err := c.FetchPage(context.Background(), 1, 20)
		require.Error(t, err)
	}

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.CircuitBreakerTrips)
	networkCalls := http.callCount()

	// Short-circuited: no additional network call is recorded
	_, err := c.FetchPage(context.Background(), 1, 20)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, networkCalls, http.callCount())
	assert.EqualValues(t, 2, c.Stats().TotalRequests)
}

func TestClient_RateLimiterDenial(t *testing.T) {
	t.Parallel()

	cfg := testProviderConfig(t)
	cfg.RateLimit = &config.RateLimitConfig{PerMinute: 1}

	http := &fakeHTTP{responses: []fakeResponse{{body: []byte(emptyPage)}}}
	c := newTestClient(t, cfg, http)

	_, err := c.FetchPage(context.Background(), 1, 20)
	require.NoError(t, err)

	_, err = c.FetchPage(context.Background(), 2, 20)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, http.callCount(), "denied request never reaches the network")

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.RateLimitErrors)
	assert.EqualValues(t, 1, stats.TotalRequests)
}

func TestClient_NotConfigured(t *testing.T) {
	t.Parallel()

	cfg := &config.ProviderConfig{
		Name:     "trefle",
		Codec:    config.CodecTrefle,
		Endpoint: "https://trefle.test/api/v1",
		// No API key file and no environment variable
	}

	http := &fakeHTTP{responses: []fakeResponse{{body: []byte(emptyPage)}}}
	c := newTestClient(t, cfg, http)

	assert.False(t, c.IsConfigured())

	_, err := c.FetchPage(context.Background(), 1, 20)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.Enrich(context.Background(), "basil")
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.Equal(t, 0, http.callCount(), "not-configured operations never attempt network I/O")
	assert.Equal(t, RequestStats{}, c.Stats())
}

func TestClient_EnrichNoMatch(t *testing.T) {
	t.Parallel()

	http := &fakeHTTP{responses: []fakeResponse{{body: []byte(emptyPage)}}}
	c := newTestClient(t, testProviderConfig(t), http)

	enriched, err := c.Enrich(context.Background(), "definitely-not-a-plant")
	require.NoError(t, err)
	assert.Nil(t, enriched)
}

func TestClient_Reset(t *testing.T) {
	t.Parallel()

	http := &fakeHTTP{responses: []fakeResponse{{body: []byte(emptyPage)}}}
	c := newTestClient(t, testProviderConfig(t), http)

	_, err := c.FetchPage(context.Background(), 1, 20)
	require.NoError(t, err)
	require.EqualValues(t, 1, c.Stats().TotalRequests)

	c.Reset()
	assert.Equal(t, RequestStats{}, c.Stats())
}
