package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/florasync/florasync/internal/config"
	"github.com/florasync/florasync/internal/health"
	"github.com/florasync/florasync/internal/provider"
	"github.com/florasync/florasync/internal/resilience"
)

const (
	defaultCooldown        = 5 * time.Minute
	defaultEscalationTrips = 3
)

// providerState is the last-known observation for one provider, kept
// so the dispatcher fires on state changes rather than levels.
type providerState struct {
	circuit         resilience.CircuitState
	healthy         bool
	lastNonCritical time.Time
}

// Dispatcher turns circuit and health state changes into alerts. Every
// fired alert goes to the structured log and the bounded history;
// configured channels are attempted best-effort on top.
type Dispatcher struct {
	cooldown        time.Duration
	escalationTrips int64

	history   *History
	notifiers []Notifier
	log       *zap.SugaredLogger

	now func() time.Time

	mu   sync.Mutex
	seen map[string]*providerState
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithDispatcherClock overrides the clock, used by tests
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher creates a dispatcher using the alerting configuration's
// cooldown and escalation settings.
func NewDispatcher(cfg *config.AlertingConfig, history *History, notifiers []Notifier, log *zap.SugaredLogger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		cooldown:        defaultCooldown,
		escalationTrips: defaultEscalationTrips,
		history:         history,
		notifiers:       notifiers,
		log:             log.Named("alerts"),
		now:             time.Now,
		seen:            make(map[string]*providerState),
	}

	if cfg != nil {
		if cfg.Cooldown != "" {
			// Validity checked at config load
			d.cooldown, _ = time.ParseDuration(cfg.Cooldown)
		}
		if cfg.EscalationTrips > 0 {
			d.escalationTrips = int64(cfg.EscalationTrips)
		}
	}

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Observe compares one provider's current circuit and health state
// against the last observation and fires alerts for every edge. The
// first observation of a provider establishes a baseline and never
// fires. Returns the alerts actually delivered.
func (d *Dispatcher) Observe(ctx context.Context, name string, circuit resilience.BreakerSnapshot, score health.Score, stats provider.RequestStats) []Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	healthyNow := score.Status == health.StatusHealthy

	st, ok := d.seen[name]
	if !ok {
		d.seen[name] = &providerState{circuit: circuit.State, healthy: healthyNow}
		return nil
	}

	type candidate struct {
		severity Severity
		event    string
		message  string
	}
	var candidates []candidate

	if circuit.State != st.circuit {
		switch circuit.State {
		case resilience.CircuitOpen:
			candidates = append(candidates, candidate{
				severity: SeverityCritical,
				event:    "circuit_opened",
				message:  fmt.Sprintf("circuit breaker opened after %d consecutive failures", circuit.ConsecutiveFailures),
			})
		case resilience.CircuitHalfOpen:
			candidates = append(candidates, candidate{
				severity: SeverityWarning,
				event:    "circuit_probing",
				message:  "circuit breaker is half-open, probing for recovery",
			})
		case resilience.CircuitClosed:
			severity := SeverityInfo
			if stats.CircuitBreakerTrips >= d.escalationTrips {
				severity = SeverityWarning
			}
			candidates = append(candidates, candidate{
				severity: severity,
				event:    "circuit_recovered",
				message:  fmt.Sprintf("circuit breaker closed after recovery probe (lifetime trips: %d)", stats.CircuitBreakerTrips),
			})
		}
	}

	if healthyNow != st.healthy {
		if healthyNow {
			candidates = append(candidates, candidate{
				severity: SeverityInfo,
				event:    "health_recovered",
				message:  fmt.Sprintf("health score recovered to %d", score.Score),
			})
		} else {
			candidates = append(candidates, candidate{
				severity: SeverityWarning,
				event:    "health_degraded",
				message:  fmt.Sprintf("health score dropped to %d (%s)", score.Score, score.Status),
			})
		}
	}

	now := d.now()
	var fired []Alert
	for _, c := range candidates {
		if c.severity != SeverityCritical && now.Sub(st.lastNonCritical) < d.cooldown {
			d.log.Debugw("alert suppressed by cooldown", "provider", name, "event", c.event)
			continue
		}

		alert := d.fire(ctx, Alert{
			ID:            uuid.New(),
			Provider:      name,
			Severity:      c.severity,
			Event:         c.event,
			Message:       c.message,
			CircuitState:  circuit.State,
			HealthScore:   score.Score,
			StatsSnapshot: stats,
			Timestamp:     now,
		})
		fired = append(fired, alert)

		if c.severity != SeverityCritical {
			st.lastNonCritical = now
		}
	}

	st.circuit = circuit.State
	st.healthy = healthyNow
	return fired
}

// fire records an alert to the log and the history, then attempts each
// configured channel. A channel failure never blocks the alert record.
func (d *Dispatcher) fire(ctx context.Context, alert Alert) Alert {
	alert.ChannelsNotified = []string{"log"}

	for _, notifier := range d.notifiers {
		if err := notifier.Send(ctx, alert); err != nil {
			d.log.Warnw("alert delivery failed",
				"provider", alert.Provider, "channel", notifier.Name(), "error", err)
			continue
		}
		alert.ChannelsNotified = append(alert.ChannelsNotified, notifier.Name())
	}

	logFn := d.log.Infow
	switch alert.Severity {
	case SeverityWarning:
		logFn = d.log.Warnw
	case SeverityCritical:
		logFn = d.log.Errorw
	}
	logFn("alert fired",
		"provider", alert.Provider,
		"severity", alert.Severity,
		"event", alert.Event,
		"message", alert.Message,
		"circuit_state", alert.CircuitState,
		"health_score", alert.HealthScore,
		"channels", alert.ChannelsNotified)

	d.history.Add(alert)
	return alert
}

// History returns the bounded alert history
func (d *Dispatcher) History() *History {
	return d.history
}
