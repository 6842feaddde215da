// Package sync drives progressive ingestion for one provider: bulk
// import via forward pagination with durable per-page checkpoints, and
// enrichment of stale records. Runs are bounded and resumable; an
// interrupted run never advances the checkpoint past the last fully
// committed page.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/florasync/florasync/internal/checkpoint"
	"github.com/florasync/florasync/internal/config"
	"github.com/florasync/florasync/internal/otel"
	"github.com/florasync/florasync/internal/provider"
	"github.com/florasync/florasync/internal/resilience"
	"github.com/florasync/florasync/internal/store"
)

const (
	defaultPageSize    = 30
	defaultPagesPerRun = 5
	defaultPageDelay   = 2 * time.Second
	defaultEnrichBatch = 10
	defaultStaleness   = 30 * 24 * time.Hour
)

// ImportReport summarizes one bulk import run
type ImportReport struct {
	Provider        string `json:"provider"`
	PagesFetched    int    `json:"pagesFetched"`
	ItemsCreated    int    `json:"itemsCreated"`
	ItemsSkipped    int    `json:"itemsSkipped"`
	ItemsRejected   int    `json:"itemsRejected"`
	Completed       bool   `json:"completed"`
	AlreadyComplete bool   `json:"alreadyComplete"`
}

// EnrichReport summarizes one enrichment run
type EnrichReport struct {
	Provider      string `json:"provider"`
	Candidates    int    `json:"candidates"`
	Updated       int    `json:"updated"`
	Discrepancies int    `json:"discrepancies"`
	Failed        int    `json:"failed"`
}

// Engine runs import and enrichment for a single provider. It is the
// single writer of that provider's checkpoint.
type Engine struct {
	client      *provider.Client
	checkpoints checkpoint.Store
	content     store.ContentStore

	pageSize    int
	pagesPerRun int
	pageDelay   time.Duration
	enrichBatch int
	staleness   time.Duration

	log    *zap.SugaredLogger
	tracer trace.Tracer

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithEngineClock overrides the clock, used by tests
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithEngineSleep overrides the inter-page delay sleep, used by tests
func WithEngineSleep(sleep func(ctx context.Context, d time.Duration) error) EngineOption {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// WithEngineTracer enables span creation for runs. A nil tracer keeps
// tracing disabled.
func WithEngineTracer(tracer trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// NewEngine builds a sync engine for one provider. Sync tuning comes
// from the provider's configuration; zero values fall back to defaults.
func NewEngine(
	client *provider.Client,
	checkpoints checkpoint.Store,
	content store.ContentStore,
	syncCfg *config.SyncConfig,
	log *zap.SugaredLogger,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		client:      client,
		checkpoints: checkpoints,
		content:     content,
		pageSize:    defaultPageSize,
		pagesPerRun: defaultPagesPerRun,
		pageDelay:   defaultPageDelay,
		enrichBatch: defaultEnrichBatch,
		staleness:   defaultStaleness,
		log:         log.Named("sync").With("provider", client.Name()),
		now:         time.Now,
		sleep:       sleepContext,
	}

	if syncCfg != nil {
		if syncCfg.PageSize > 0 {
			e.pageSize = syncCfg.PageSize
		}
		if syncCfg.PagesPerRun > 0 {
			e.pagesPerRun = syncCfg.PagesPerRun
		}
		if syncCfg.PageDelay != "" {
			// Validity checked at config load
			e.pageDelay, _ = time.ParseDuration(syncCfg.PageDelay)
		}
		if syncCfg.EnrichBatch > 0 {
			e.enrichBatch = syncCfg.EnrichBatch
		}
		if syncCfg.Staleness != "" {
			e.staleness, _ = time.ParseDuration(syncCfg.Staleness)
		}
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunImport consumes up to the configured number of pages, committing
// the checkpoint after each fully processed page. An empty page latches
// the checkpoint complete. A failed page ends the run; pages already
// committed stay committed.
func (e *Engine) RunImport(ctx context.Context) (*ImportReport, error) {
	ctx, span := otel.StartSpan(ctx, e.tracer, "sync.RunImport", trace.WithAttributes(
		otel.AttrProviderName.String(e.client.Name()),
		otel.AttrSyncMode.String("import"),
	))
	defer span.End()

	report, err := e.runImport(ctx)
	otel.RecordError(span, err)
	span.SetAttributes(otel.AttrItemsCreated.Int(report.ItemsCreated))
	return report, err
}

func (e *Engine) runImport(ctx context.Context) (*ImportReport, error) {
	report := &ImportReport{Provider: e.client.Name()}

	if !e.client.IsConfigured() {
		return report, fmt.Errorf("provider %s: %w", e.client.Name(), provider.ErrNotConfigured)
	}

	cp, err := e.checkpoints.Get(ctx, e.client.Name())
	if err != nil {
		return report, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		cp = &checkpoint.Checkpoint{}
	}
	if cp.IsComplete {
		e.log.Infow("import already complete, nothing to do", "current_page", cp.CurrentPage)
		report.AlreadyComplete = true
		return report, nil
	}

	for i := 0; i < e.pagesPerRun; i++ {
		if i > 0 {
			if err := e.sleep(ctx, e.pageDelay); err != nil {
				return report, err
			}
		}

		pageNum := cp.CurrentPage + 1
		pageCtx, pageSpan := otel.StartSpan(ctx, e.tracer, "sync.FetchPage", trace.WithAttributes(
			otel.AttrProviderName.String(e.client.Name()),
			otel.AttrPageNumber.Int(pageNum),
		))
		page, err := e.client.FetchPage(pageCtx, pageNum, e.pageSize)
		otel.RecordError(pageSpan, err)
		pageSpan.End()
		if err != nil {
			e.log.Errorw("page fetch failed, ending run", "page", pageNum, "error", err)
			return report, fmt.Errorf("page %d: %w", pageNum, err)
		}
		report.PagesFetched++

		now := e.now()
		if len(page.Items) == 0 {
			if err := e.checkpoints.Upsert(ctx, e.client.Name(), checkpoint.Patch{
				LastRunAt: &now,
				Complete:  true,
			}); err != nil {
				return report, fmt.Errorf("failed to mark checkpoint complete: %w", err)
			}
			report.Completed = true
			e.log.Infow("upstream listing exhausted", "pages_consumed", cp.CurrentPage)
			return report, nil
		}

		created, skipped, rejected := e.importPage(ctx, page)
		report.ItemsCreated += created
		report.ItemsSkipped += skipped
		report.ItemsRejected += rejected

		patch := checkpoint.Patch{
			CurrentPage:  &pageNum,
			ItemsCreated: created,
			LastRunAt:    &now,
		}
		if err := e.checkpoints.Upsert(ctx, e.client.Name(), patch); err != nil {
			return report, fmt.Errorf("failed to commit page %d: %w", pageNum, err)
		}
		cp.Apply(patch)

		e.log.Infow("page committed",
			"page", pageNum, "created", created, "skipped", skipped, "rejected", rejected)
	}

	return report, nil
}

// importPage processes one fetched page. Item-level errors are logged
// and never abort the page.
func (e *Engine) importPage(ctx context.Context, page *provider.Page) (created, skipped, rejected int) {
	for i := range page.Items {
		item := &page.Items[i]

		verdict := Evaluate(item)
		if !verdict.Accept {
			rejected++
			e.log.Debugw("candidate rejected", "external_id", item.ExternalID, "reason", verdict.Reason)
			continue
		}

		exists, err := e.content.Exists(ctx, e.client.Name(), item.ExternalID)
		if err != nil {
			e.log.Warnw("existence check failed, skipping item", "external_id", item.ExternalID, "error", err)
			continue
		}
		if exists {
			skipped++
			continue
		}

		now := e.now()
		_, err = e.content.CreateDraft(ctx, &store.Draft{
			ProviderID:     e.client.Name(),
			ExternalID:     item.ExternalID,
			CommonName:     item.CommonName,
			ScientificName: item.ScientificName,
			Family:         item.Family,
			Genus:          item.Genus,
			Cycle:          item.Cycle,
			GrowthHabit:    item.GrowthHabit,
			Edible:         item.Edible,
			Poisonous:      item.Poisonous,
			LastSyncedAt:   &now,
		})
		if err != nil {
			e.log.Warnw("draft creation failed, skipping item", "external_id", item.ExternalID, "error", err)
			continue
		}
		created++
	}
	return created, skipped, rejected
}

// RunEnrichment revisits a bounded batch of stale or never-synced
// records, oldest first. One bad record never aborts the batch; only a
// tripped breaker or an exhausted local quota ends it early, since
// every remaining lookup would fail the same way.
func (e *Engine) RunEnrichment(ctx context.Context) (*EnrichReport, error) {
	ctx, span := otel.StartSpan(ctx, e.tracer, "sync.RunEnrichment", trace.WithAttributes(
		otel.AttrProviderName.String(e.client.Name()),
		otel.AttrSyncMode.String("enrich"),
	))
	defer span.End()

	report, err := e.runEnrichment(ctx)
	otel.RecordError(span, err)
	span.SetAttributes(otel.AttrItemsUpdated.Int(report.Updated))
	return report, err
}

func (e *Engine) runEnrichment(ctx context.Context) (*EnrichReport, error) {
	report := &EnrichReport{Provider: e.client.Name()}

	if !e.client.IsConfigured() {
		return report, fmt.Errorf("provider %s: %w", e.client.Name(), provider.ErrNotConfigured)
	}

	olderThan := e.now().Add(-e.staleness)
	drafts, err := e.content.ListStale(ctx, e.client.Name(), olderThan, e.enrichBatch)
	if err != nil {
		return report, fmt.Errorf("failed to list stale records: %w", err)
	}
	report.Candidates = len(drafts)

	var updated int
	for i := range drafts {
		draft := &drafts[i]

		name := draft.ScientificName
		if name == "" {
			name = draft.CommonName
		}

		enriched, err := e.client.Enrich(ctx, name)
		if err != nil {
			if errors.Is(err, provider.ErrRateLimited) || errors.Is(err, resilience.ErrCircuitOpen) {
				e.log.Warnw("ending enrichment run early", "error", err)
				break
			}
			report.Failed++
			e.log.Warnw("enrichment lookup failed", "record", draft.ID, "name", name, "error", err)
			continue
		}

		if enriched == nil {
			report.Discrepancies++
			if err := e.content.RecordDiscrepancy(ctx, &store.Discrepancy{
				ProviderID: e.client.Name(),
				RecordID:   draft.ID,
				Name:       name,
				Reason:     "no match found upstream",
			}); err != nil {
				e.log.Warnw("failed to record discrepancy", "record", draft.ID, "error", err)
			}
			continue
		}

		if err := e.content.UpdateFields(ctx, draft.ID, mergeFields(enriched, e.now())); err != nil {
			report.Failed++
			e.log.Warnw("enrichment merge failed", "record", draft.ID, "error", err)
			continue
		}
		updated++
	}
	report.Updated = updated

	if updated > 0 {
		now := e.now()
		if err := e.checkpoints.Upsert(ctx, e.client.Name(), checkpoint.Patch{
			ItemsUpdated: updated,
			LastRunAt:    &now,
		}); err != nil {
			e.log.Warnw("failed to record enrichment progress", "error", err)
		}
	}

	e.log.Infow("enrichment run finished",
		"candidates", report.Candidates, "updated", report.Updated,
		"discrepancies", report.Discrepancies, "failed", report.Failed)
	return report, nil
}

// mergeFields builds a partial update carrying only the fields the
// provider actually returned, so empty upstream data never clobbers
// curated values.
func mergeFields(enriched *provider.Enriched, syncedAt time.Time) store.Fields {
	fields := store.Fields{LastSyncedAt: &syncedAt}
	if enriched.ScientificName != "" {
		fields.ScientificName = &enriched.ScientificName
	}
	if enriched.Family != "" {
		fields.Family = &enriched.Family
	}
	if enriched.Genus != "" {
		fields.Genus = &enriched.Genus
	}
	if enriched.Cycle != "" {
		fields.Cycle = &enriched.Cycle
	}
	if enriched.GrowthHabit != "" {
		fields.GrowthHabit = &enriched.GrowthHabit
	}
	if enriched.Watering != "" {
		fields.Watering = &enriched.Watering
	}
	if len(enriched.Sunlight) > 0 {
		fields.Sunlight = enriched.Sunlight
	}
	if enriched.Edible != nil {
		fields.Edible = enriched.Edible
	}
	return fields
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
