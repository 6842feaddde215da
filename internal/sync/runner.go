package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Runner coordinates engines across providers. Overlapping triggers for
// the same provider and mode (a manual run firing while a scheduled one
// is in flight) are coalesced into the single in-flight run, so each
// provider has at most one import and one enrichment running at a time.
type Runner struct {
	engines map[string]*Engine
	group   singleflight.Group
	log     *zap.SugaredLogger
}

// NewRunner creates a runner over the given per-provider engines
func NewRunner(engines map[string]*Engine, log *zap.SugaredLogger) *Runner {
	return &Runner{
		engines: engines,
		log:     log.Named("runner"),
	}
}

// Providers returns the known provider names, sorted
func (r *Runner) Providers() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Engine returns the engine for a provider, or nil when unknown
func (r *Runner) Engine(name string) *Engine {
	return r.engines[name]
}

// RunImport runs one import batch for the named provider, joining any
// run already in flight.
func (r *Runner) RunImport(ctx context.Context, name string) (*ImportReport, error) {
	engine, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider '%s'", name)
	}

	result, err, shared := r.group.Do(name+"/import", func() (any, error) {
		return engine.RunImport(ctx)
	})
	if shared {
		r.log.Infow("joined in-flight import run", "provider", name)
	}
	report, _ := result.(*ImportReport)
	return report, err
}

// RunEnrichment runs one enrichment batch for the named provider,
// joining any run already in flight.
func (r *Runner) RunEnrichment(ctx context.Context, name string) (*EnrichReport, error) {
	engine, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider '%s'", name)
	}

	result, err, shared := r.group.Do(name+"/enrich", func() (any, error) {
		return engine.RunEnrichment(ctx)
	})
	if shared {
		r.log.Infow("joined in-flight enrichment run", "provider", name)
	}
	report, _ := result.(*EnrichReport)
	return report, err
}

// RunAllImports runs one import batch for every provider concurrently.
// Providers are independent, so one provider's failure does not stop
// the others; the first error is returned after all runs finish.
func (r *Runner) RunAllImports(ctx context.Context) (map[string]*ImportReport, error) {
	reports := make(map[string]*ImportReport, len(r.engines))
	var mu gosync.Mutex
	var g errgroup.Group

	for _, name := range r.Providers() {
		g.Go(func() error {
			report, err := r.RunImport(ctx, name)
			if report != nil {
				mu.Lock()
				reports[name] = report
				mu.Unlock()
			}
			if err != nil {
				r.log.Errorw("import run failed", "provider", name, "error", err)
				return fmt.Errorf("provider %s: %w", name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	return reports, err
}
