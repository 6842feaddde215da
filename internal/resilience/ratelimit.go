// Package resilience contains the failure-protection primitives wrapped
// around every provider call: rate limiting, retry classification with
// backoff, and circuit breaking. Each provider gets its own independent
// instances; there is no shared state across providers.
package resilience

import (
	"sync"
	"time"
)

// RateLimiter enforces fixed-window request quotas for a single provider.
// Two windows apply: a one-minute window and a UTC calendar-day window.
// A quota of zero disables that window.
type RateLimiter struct {
	mu sync.Mutex

	perMinute int
	perDay    int

	minuteStart time.Time
	minuteCount int

	dayStart time.Time
	dayCount int

	now func() time.Time
}

// RateLimiterOption configures a RateLimiter
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterClock overrides the clock, used by tests to step time
func WithRateLimiterClock(now func() time.Time) RateLimiterOption {
	return func(l *RateLimiter) {
		l.now = now
	}
}

// NewRateLimiter creates a rate limiter with the given per-minute and
// per-day quotas. A quota of zero means that window is unbounded.
func NewRateLimiter(perMinute, perDay int, opts ...RateLimiterOption) *RateLimiter {
	l := &RateLimiter{
		perMinute: perMinute,
		perDay:    perDay,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether a request may be issued now. When it returns
// true the request is counted against both windows; when it returns
// false no counters change and the caller must not issue the request.
func (l *RateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()

	minuteStart := now.Truncate(time.Minute)
	if !minuteStart.Equal(l.minuteStart) {
		l.minuteStart = minuteStart
		l.minuteCount = 0
	}

	dayStart := now.Truncate(24 * time.Hour)
	if !dayStart.Equal(l.dayStart) {
		l.dayStart = dayStart
		l.dayCount = 0
	}

	if l.perMinute > 0 && l.minuteCount >= l.perMinute {
		return false
	}
	if l.perDay > 0 && l.dayCount >= l.perDay {
		return false
	}

	l.minuteCount++
	l.dayCount++
	return true
}

// Remaining returns how many requests remain in the current minute and
// day windows. A negative value means the window is unbounded.
func (l *RateLimiter) Remaining() (minute, day int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()

	minute = -1
	if l.perMinute > 0 {
		minute = l.perMinute
		if now.Truncate(time.Minute).Equal(l.minuteStart) {
			minute = l.perMinute - l.minuteCount
		}
	}

	day = -1
	if l.perDay > 0 {
		day = l.perDay
		if now.Truncate(24*time.Hour).Equal(l.dayStart) {
			day = l.perDay - l.dayCount
		}
	}

	return minute, day
}

// Reset clears both window counters
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minuteCount = 0
	l.dayCount = 0
}
