package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/florasync/florasync/internal/config"
)

// blockingHTTP holds every request until released, counting calls
type blockingHTTP struct {
	mu      gosync.Mutex
	calls   int
	release chan struct{}
	body    []byte
}

func (b *blockingHTTP) Get(ctx context.Context, _ string) ([]byte, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()

	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.body, nil
}

func TestRunner_UnknownProvider(t *testing.T) {
	t.Parallel()
	r := NewRunner(map[string]*Engine{}, zap.NewNop().Sugar())

	_, err := r.RunImport(context.Background(), "nope")
	assert.Error(t, err)
	_, err = r.RunEnrichment(context.Background(), "nope")
	assert.Error(t, err)
}

func TestRunner_CoalescesOverlappingImports(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	http := &blockingHTTP{release: make(chan struct{}), body: pageJSON()}
	engine, _, _ := testEngine(t, http, &config.SyncConfig{PagesPerRun: 1})
	r := NewRunner(map[string]*Engine{"perenual": engine}, zap.NewNop().Sugar())

	var wg gosync.WaitGroup
	reports := make([]*ImportReport, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[0], errs[0] = r.RunImport(ctx, "perenual")
	}()

	// Wait for the first run to be parked inside the fetch, then let a
	// second trigger arrive while it is in flight
	require.Eventually(t, func() bool {
		http.mu.Lock()
		defer http.mu.Unlock()
		return http.calls == 1
	}, time.Second, 5*time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[1], errs[1] = r.RunImport(ctx, "perenual")
	}()
	time.Sleep(50 * time.Millisecond)

	close(http.release)
	wg.Wait()

	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, reports[i])
		assert.True(t, reports[i].Completed)
	}
	assert.Equal(t, 1, http.calls, "overlapping triggers share one upstream fetch")
}

func TestRunner_Providers(t *testing.T) {
	t.Parallel()

	engineA, _, _ := testEngine(t, &fakeHTTP{responses: []fakeResponse{{body: pageJSON()}}}, nil)
	r := NewRunner(map[string]*Engine{"perenual": engineA}, zap.NewNop().Sugar())

	assert.Equal(t, []string{"perenual"}, r.Providers())
	assert.NotNil(t, r.Engine("perenual"))
	assert.Nil(t, r.Engine("trefle"))
}
