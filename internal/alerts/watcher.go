package alerts

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/florasync/florasync/internal/config"
	"github.com/florasync/florasync/internal/health"
	"github.com/florasync/florasync/internal/provider"
	"github.com/florasync/florasync/internal/telemetry"
)

const defaultCheckInterval = 30 * time.Second

// Ticker abstracts the recurring check timer so tests can step
// simulated time instead of waiting on the wall clock.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// TickerFactory builds a ticker for an interval
type TickerFactory func(d time.Duration) Ticker

// Watcher periodically feeds every provider's current circuit and
// health state to the dispatcher. It runs independently of sync runs.
type Watcher struct {
	interval   time.Duration
	dispatcher *Dispatcher
	clients    map[string]*provider.Client
	metrics    *telemetry.ProviderMetrics
	log        *zap.SugaredLogger

	newTicker TickerFactory

	// lifetime trip counts seen at the previous pass, per provider
	seenTrips map[string]int64
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithTickerFactory overrides the timer source, used by tests
func WithTickerFactory(factory TickerFactory) WatcherOption {
	return func(w *Watcher) {
		w.newTicker = factory
	}
}

// WithWatcherMetrics enables circuit trip metrics. A nil value keeps
// them disabled.
func WithWatcherMetrics(metrics *telemetry.ProviderMetrics) WatcherOption {
	return func(w *Watcher) {
		w.metrics = metrics
	}
}

// NewWatcher creates a watcher polling at the configured check interval
func NewWatcher(cfg *config.AlertingConfig, dispatcher *Dispatcher, clients map[string]*provider.Client, log *zap.SugaredLogger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		interval:   defaultCheckInterval,
		dispatcher: dispatcher,
		clients:    clients,
		log:        log.Named("alertwatcher"),
		newTicker: func(d time.Duration) Ticker {
			return &realTicker{t: time.NewTicker(d)}
		},
		seenTrips: make(map[string]int64),
	}

	if cfg != nil && cfg.CheckInterval != "" {
		// Validity checked at config load
		w.interval, _ = time.ParseDuration(cfg.CheckInterval)
	}

	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until the context is cancelled. An initial check runs
// immediately to establish per-provider baselines.
func (w *Watcher) Run(ctx context.Context) {
	w.CheckNow(ctx)

	ticker := w.newTicker(w.interval)
	defer ticker.Stop()

	w.log.Infow("alert watcher started", "interval", w.interval, "providers", len(w.clients))
	for {
		select {
		case <-ctx.Done():
			w.log.Infow("alert watcher stopped")
			return
		case <-ticker.C():
			w.CheckNow(ctx)
		}
	}
}

// CheckNow runs one observation pass over all providers
func (w *Watcher) CheckNow(ctx context.Context) {
	for name, client := range w.clients {
		stats := client.Stats()
		w.dispatcher.Observe(ctx, name, client.CircuitState(), health.Compute(stats), stats)

		if delta := stats.CircuitBreakerTrips - w.seenTrips[name]; delta > 0 {
			w.metrics.RecordCircuitTrips(ctx, name, delta)
		}
		w.seenTrips[name] = stats.CircuitBreakerTrips
	}
}
