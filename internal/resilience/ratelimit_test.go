package resilience

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_MinuteWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewRateLimiter(3, 0, WithRateLimiterClock(clock.Now))

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(), "request %d within quota", i+1)
	}
	assert.False(t, l.Allow(), "quota exhausted")

	// Window rolls over, quota refreshes
	clock.Advance(time.Minute)
	assert.True(t, l.Allow())
}

func TestRateLimiter_DayWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewRateLimiter(0, 2, WithRateLimiterClock(clock.Now))

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	// A minute later the daily quota is still exhausted
	clock.Advance(time.Minute)
	assert.False(t, l.Allow())

	clock.Advance(24 * time.Hour)
	assert.True(t, l.Allow())
}

func TestRateLimiter_DeniedRequestsDoNotConsumeQuota(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewRateLimiter(1, 2, WithRateLimiterClock(clock.Now))

	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	// The denied request must not have touched the daily counter
	_, day := l.Remaining()
	assert.Equal(t, 1, day)
}

func TestRateLimiter_ZeroQuotaIsUnbounded(t *testing.T) {
	t.Parallel()

	l := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow())
	}

	minute, day := l.Remaining()
	assert.Equal(t, -1, minute)
	assert.Equal(t, -1, day)
}

func TestRateLimiter_ConcurrentCallers(t *testing.T) {
	t.Parallel()

	const quota = 50
	l := NewRateLimiter(quota, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, quota, allowed, "counters updated atomically under concurrency")
}
