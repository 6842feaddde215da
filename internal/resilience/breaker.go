package resilience

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the state of a provider's circuit breaker
type CircuitState string

const (
	// CircuitClosed means requests pass through normally
	CircuitClosed CircuitState = "CLOSED"

	// CircuitOpen means requests are short-circuited until cooldown elapses
	CircuitOpen CircuitState = "OPEN"

	// CircuitHalfOpen means a single probe request is testing recovery
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// ErrCircuitOpen is returned when the breaker short-circuits a request
// without attempting network I/O.
var ErrCircuitOpen = errors.New("circuit breaker is open")

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 60 * time.Second
)

// BreakerSnapshot is a point-in-time copy of breaker state
type BreakerSnapshot struct {
	State               CircuitState `json:"state"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	OpenedAt            time.Time    `json:"openedAt,omitzero"`
	LastProbeSuccess    *bool        `json:"lastProbeSuccess,omitempty"`
}

// Breaker is a three-state circuit breaker for a single provider.
// The only legal transitions are CLOSED->OPEN (failure threshold),
// OPEN->HALF_OPEN (cooldown elapsed), HALF_OPEN->CLOSED (probe success),
// and HALF_OPEN->OPEN (probe failure).
type Breaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration

	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
	probeInFlight       bool
	lastProbeSuccess    *bool

	now func() time.Time
}

// BreakerOption configures a Breaker
type BreakerOption func(*Breaker)

// WithBreakerClock overrides the clock, used by tests to step time
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithFailureThreshold sets the consecutive-failure count that opens the circuit
func WithFailureThreshold(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets how long the circuit stays open before allowing a probe
func WithCooldown(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// NewBreaker creates a circuit breaker in the CLOSED state
func NewBreaker(opts ...BreakerOption) *Breaker {
	b := &Breaker{
		threshold: defaultFailureThreshold,
		cooldown:  defaultCooldown,
		state:     CircuitClosed,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Acquire asks the breaker whether a request may proceed. It returns
// ErrCircuitOpen when the circuit is open and cooldown has not elapsed,
// or when a half-open probe is already in flight. When the cooldown has
// elapsed the caller becomes the single half-open probe.
func (b *Breaker) Acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return nil

	case CircuitOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		// Cooldown elapsed: this caller is the probe
		b.state = CircuitHalfOpen
		b.probeInFlight = true
		return nil

	case CircuitHalfOpen:
		if b.probeInFlight {
			return ErrCircuitOpen
		}
		b.probeInFlight = true
		return nil
	}

	return nil
}

// Record reports the outcome of a request previously admitted by
// Acquire. It returns true when this outcome tripped the circuit
// (CLOSED->OPEN), which callers use to count circuitBreakerTrips.
func (b *Breaker) Record(success bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitHalfOpen {
		b.probeInFlight = false
		result := success
		b.lastProbeSuccess = &result
		if success {
			b.state = CircuitClosed
			b.consecutiveFailures = 0
		} else {
			// Re-open with a fresh cooldown; not counted as a new trip
			b.state = CircuitOpen
			b.openedAt = b.now()
		}
		return false
	}

	if success {
		b.consecutiveFailures = 0
		return false
	}

	b.consecutiveFailures++
	if b.state == CircuitClosed && b.consecutiveFailures >= b.threshold {
		b.state = CircuitOpen
		b.openedAt = b.now()
		return true
	}
	return false
}

// State returns the raw circuit state. The OPEN->HALF_OPEN transition
// happens only when Acquire admits a probe, so after cooldown elapses
// observers keep seeing OPEN until the next call attempt.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a point-in-time copy of the breaker state
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	var probe *bool
	if b.lastProbeSuccess != nil {
		v := *b.lastProbeSuccess
		probe = &v
	}

	return BreakerSnapshot{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		OpenedAt:            b.openedAt,
		LastProbeSuccess:    probe,
	}
}

// Reset returns the breaker to CLOSED with zeroed counters
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = CircuitClosed
	b.consecutiveFailures = 0
	b.openedAt = time.Time{}
	b.probeInFlight = false
	b.lastProbeSuccess = nil
}
