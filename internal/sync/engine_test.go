package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/florasync/florasync/internal/checkpoint"
	"github.com/florasync/florasync/internal/config"
	"github.com/florasync/florasync/internal/httpclient"
	florasyncotel "github.com/florasync/florasync/internal/otel"
	"github.com/florasync/florasync/internal/provider"
	"github.com/florasync/florasync/internal/store"
)

// fakeHTTP serves canned responses in order and remembers every
// requested URL. The last response repeats once the queue is exhausted.
type fakeHTTP struct {
	responses []fakeResponse
	calls     []string
}

type fakeResponse struct {
	body []byte
	err  error
}

func (f *fakeHTTP) Get(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	r := f.responses[idx]
	return r.body, r.err
}

func pageJSON(items ...string) []byte {
	return []byte(fmt.Sprintf(`{"data":[%s]}`, strings.Join(items, ",")))
}

func perenualItem(id int, name string, edible, poisonous bool) string {
	poisonousInt := 0
	if poisonous {
		poisonousInt = 1
	}
	return fmt.Sprintf(
		`{"id":%d,"common_name":"%s","scientific_name":["%s spp."],"edible_leaf":%t,"poisonous_to_humans":%d}`,
		id, name, name, edible, poisonousInt)
}

func testEngine(t *testing.T, http httpclient.Client, syncCfg *config.SyncConfig, opts ...EngineOption) (*Engine, checkpoint.Store, store.ContentStore) {
	t.Helper()

	keyFile := filepath.Join(t.TempDir(), "api-key")
	require.NoError(t, os.WriteFile(keyFile, []byte("test-key"), 0o600))

	cfg := &config.ProviderConfig{
		Name:       "perenual",
		Codec:      config.CodecPerenual,
		Endpoint:   "https://perenual.example",
		APIKeyFile: keyFile,
		Retry:      &config.RetryConfig{MaxAttempts: 1},
	}

	log := zap.NewNop().Sugar()
	client, err := provider.NewClient(cfg, log,
		provider.WithHTTPClient(http),
		provider.WithSleep(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, err)

	checkpoints := checkpoint.NewFileStore(filepath.Join(t.TempDir(), "checkpoints"))
	content := store.NewMemoryStore()

	opts = append(opts, WithEngineSleep(func(context.Context, time.Duration) error { return nil }))
	engine := NewEngine(client, checkpoints, content, syncCfg, log, opts...)
	return engine, checkpoints, content
}

func TestRunImport_EmptyPageLatchesComplete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	http := &fakeHTTP{responses: []fakeResponse{{body: pageJSON()}}}
	engine, checkpoints, _ := testEngine(t, http, nil)

	report, err := engine.RunImport(ctx)
	require.NoError(t, err)
	assert.True(t, report.Completed)
	assert.Equal(t, 1, report.PagesFetched)
	assert.Equal(t, 0, report.ItemsCreated)

	cp, err := checkpoints.Get(ctx, "perenual")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.IsComplete)

	// A later run is a no-op that never touches the provider
	callsBefore := len(http.calls)
	report, err = engine.RunImport(ctx)
	require.NoError(t, err)
	assert.True(t, report.AlreadyComplete)
	assert.Equal(t, callsBefore, len(http.calls))
}

func TestRunImport_EmitsPageSpans(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	http := &fakeHTTP{responses: []fakeResponse{
		{body: pageJSON(perenualItem(1, "Plant 1", true, false))},
		{body: pageJSON()},
	}}
	engine, _, _ := testEngine(t, http, nil,
		WithEngineTracer(tp.Tracer("test")))

	_, err := engine.RunImport(ctx)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	pages := make([]int64, 0, 2)
	var sawRun bool
	for _, span := range spans {
		switch span.Name {
		case "sync.RunImport":
			sawRun = true
		case "sync.FetchPage":
			for _, attr := range span.Attributes {
				if attr.Key == florasyncotel.AttrPageNumber {
					pages = append(pages, attr.Value.AsInt64())
				}
			}
		}
	}
	assert.True(t, sawRun)
	assert.Equal(t, []int64{1, 2}, pages)
}

func TestRunImport_HeuristicAndDedup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// 20 items: 3 rejected by the heuristic, 2 already imported
	items := make([]string, 0, 20)
	for i := 1; i <= 17; i++ {
		items = append(items, perenualItem(i, fmt.Sprintf("Plant %d", i), true, false))
	}
	for i := 18; i <= 20; i++ {
		items = append(items, perenualItem(i, fmt.Sprintf("Plant %d", i), false, true))
	}

	http := &fakeHTTP{responses: []fakeResponse{
		{body: pageJSON(items...)},
		{body: pageJSON()},
	}}
	engine, checkpoints, content := testEngine(t, http, &config.SyncConfig{PagesPerRun: 1})

	for _, id := range []string{"1", "2"} {
		_, err := content.CreateDraft(ctx, &store.Draft{ProviderID: "perenual", ExternalID: id})
		require.NoError(t, err)
	}

	report, err := engine.RunImport(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, report.ItemsCreated)
	assert.Equal(t, 2, report.ItemsSkipped)
	assert.Equal(t, 3, report.ItemsRejected)
	assert.False(t, report.Completed)

	cp, err := checkpoints.Get(ctx, "perenual")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 1, cp.CurrentPage)
	assert.Equal(t, 15, cp.ItemsCreated)
}

func TestRunImport_FailedPageKeepsCommittedPages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	http := &fakeHTTP{responses: []fakeResponse{
		{body: pageJSON(perenualItem(1, "Fir", true, false))},
		{err: httpclient.NewHTTPError(500, "https://perenual.example", "Internal Server Error")},
	}}
	engine, checkpoints, _ := testEngine(t, http, &config.SyncConfig{PagesPerRun: 3})

	report, err := engine.RunImport(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, report.PagesFetched)
	assert.Equal(t, 1, report.ItemsCreated)

	// Only the fully processed page is committed
	cp, cpErr := checkpoints.Get(ctx, "perenual")
	require.NoError(t, cpErr)
	require.NotNil(t, cp)
	assert.Equal(t, 1, cp.CurrentPage)
	assert.False(t, cp.IsComplete)
}

func TestRunImport_ResumesFromCheckpoint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	http := &fakeHTTP{responses: []fakeResponse{
		{body: pageJSON(perenualItem(42, "Willow", true, false))},
	}}
	engine, checkpoints, _ := testEngine(t, http, &config.SyncConfig{PagesPerRun: 1, PageSize: 20})

	page := 4
	require.NoError(t, checkpoints.Upsert(ctx, "perenual", checkpoint.Patch{CurrentPage: &page}))

	_, err := engine.RunImport(ctx)
	require.NoError(t, err)

	require.Len(t, http.calls, 1)
	assert.Contains(t, http.calls[0], "page=5")

	cp, err := checkpoints.Get(ctx, "perenual")
	require.NoError(t, err)
	assert.Equal(t, 5, cp.CurrentPage)
}

func TestRunImport_NotConfiguredAbortsWithoutState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	keyFile := filepath.Join(t.TempDir(), "api-key")
	require.NoError(t, os.WriteFile(keyFile, nil, 0o600))

	cfg := &config.ProviderConfig{
		Name:       "perenual",
		Codec:      config.CodecPerenual,
		Endpoint:   "https://perenual.example",
		APIKeyFile: keyFile,
	}
	log := zap.NewNop().Sugar()
	http := &fakeHTTP{responses: []fakeResponse{{body: pageJSON()}}}
	client, err := provider.NewClient(cfg, log, provider.WithHTTPClient(http))
	require.NoError(t, err)

	checkpoints := checkpoint.NewFileStore(filepath.Join(t.TempDir(), "checkpoints"))
	engine := NewEngine(client, checkpoints, store.NewMemoryStore(), nil, log)

	_, err = engine.RunImport(ctx)
	require.ErrorIs(t, err, provider.ErrNotConfigured)
	assert.Empty(t, http.calls)

	cp, err := checkpoints.Get(ctx, "perenual")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestRunEnrichment_MergeDiscrepancyAndPartialFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	match := pageJSON(`{"id":9,"common_name":"Sage","scientific_name":["Salvia officinalis"],"family":"Lamiaceae","cycle":"perennial","watering":"average","edible_leaf":true}`)
	http := &fakeHTTP{responses: []fakeResponse{
		{body: match},
		{body: pageJSON()},
		{err: httpclient.NewHTTPError(400, "https://perenual.example", "Bad Request")},
	}}
	engine, checkpoints, content := testEngine(t, http, &config.SyncConfig{EnrichBatch: 10})

	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i, name := range []string{"Sage", "Nightshade", "Thistle"} {
		created := base.Add(time.Duration(i) * time.Minute)
		id, err := content.CreateDraft(ctx, &store.Draft{
			ProviderID: "perenual",
			ExternalID: fmt.Sprintf("e%d", i),
			CommonName: name,
			Family:     "Unknown",
			CreatedAt:  created,
		})
		require.NoError(t, err)
		ids = append(ids, id.String())
	}

	report, err := engine.RunEnrichment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Candidates)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Discrepancies)
	assert.Equal(t, 1, report.Failed)

	// The matched record got only provider-supplied fields merged
	drafts, err := content.ListStale(ctx, "perenual", time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	var sage *store.Draft
	for i := range drafts {
		if drafts[i].ID.String() == ids[0] {
			sage = &drafts[i]
		}
	}
	require.NotNil(t, sage)
	assert.Equal(t, "Salvia officinalis", sage.ScientificName)
	assert.Equal(t, "Lamiaceae", sage.Family)
	assert.Equal(t, "perennial", sage.Cycle)
	assert.Equal(t, "average", sage.Watering)
	require.NotNil(t, sage.LastSyncedAt)

	// The no-match record is untouched apart from the discrepancy entry
	for i := range drafts {
		if drafts[i].ID.String() == ids[1] {
			assert.Equal(t, "Unknown", drafts[i].Family)
			assert.Nil(t, drafts[i].LastSyncedAt)
		}
	}

	cp, err := checkpoints.Get(ctx, "perenual")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 1, cp.ItemsUpdated)
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	edible := true
	notEdible := false
	poisonous := true

	tests := []struct {
		name   string
		record provider.PlantRecord
		accept bool
	}{
		{
			name:   "edible accepted even when poisonous flagged",
			record: provider.PlantRecord{CommonName: "Elderberry", Edible: &edible, Poisonous: &poisonous},
			accept: true,
		},
		{
			name:   "unwanted category rejected",
			record: provider.PlantRecord{CommonName: "Kudzu", Categories: []string{"Invasive"}},
			accept: false,
		},
		{
			name:   "poisonous without edible signal rejected",
			record: provider.PlantRecord{CommonName: "Oleander", Edible: &notEdible, Poisonous: &poisonous},
			accept: false,
		},
		{
			name:   "unnamed record rejected",
			record: provider.PlantRecord{ExternalID: "77"},
			accept: false,
		},
		{
			name:   "ambiguous record accepted for review",
			record: provider.PlantRecord{CommonName: "Mystery Herb"},
			accept: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			verdict := Evaluate(&tc.record)
			assert.Equal(t, tc.accept, verdict.Accept, verdict.Reason)
		})
	}
}
