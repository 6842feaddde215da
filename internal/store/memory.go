package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore is an in-memory ContentStore used for file-storage mode
// and tests. Not suitable for multi-process deployments.
type memoryStore struct {
	mu            sync.RWMutex
	drafts        map[uuid.UUID]*Draft
	discrepancies []Discrepancy

	now func() time.Time
}

// MemoryStoreOption configures a memory store
type MemoryStoreOption func(*memoryStore)

// WithMemoryStoreClock overrides the clock, used by tests
func WithMemoryStoreClock(now func() time.Time) MemoryStoreOption {
	return func(m *memoryStore) {
		m.now = now
	}
}

// NewMemoryStore creates an in-memory content store
func NewMemoryStore(opts ...MemoryStoreOption) ContentStore {
	m := &memoryStore{
		drafts: make(map[uuid.UUID]*Draft),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *memoryStore) Exists(_ context.Context, providerID, externalID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.drafts {
		if d.ProviderID == providerID && d.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) CreateDraft(_ context.Context, draft *Draft) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *draft
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.Status == "" {
		stored.Status = DraftStatus
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = m.now()
	}

	m.drafts[stored.ID] = &stored
	return stored.ID, nil
}

func (m *memoryStore) UpdateFields(_ context.Context, id uuid.UUID, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok {
		return fmt.Errorf("draft %s not found", id)
	}

	if fields.ScientificName != nil {
		d.ScientificName = *fields.ScientificName
	}
	if fields.Family != nil {
		d.Family = *fields.Family
	}
	if fields.Genus != nil {
		d.Genus = *fields.Genus
	}
	if fields.Cycle != nil {
		d.Cycle = *fields.Cycle
	}
	if fields.GrowthHabit != nil {
		d.GrowthHabit = *fields.GrowthHabit
	}
	if fields.Watering != nil {
		d.Watering = *fields.Watering
	}
	if fields.Sunlight != nil {
		d.Sunlight = fields.Sunlight
	}
	if fields.Edible != nil {
		d.Edible = fields.Edible
	}
	if fields.LastSyncedAt != nil {
		d.LastSyncedAt = fields.LastSyncedAt
	}

	return nil
}

func (m *memoryStore) ListStale(_ context.Context, providerID string, olderThan time.Time, limit int) ([]Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stale []Draft
	for _, d := range m.drafts {
		if d.ProviderID != providerID {
			continue
		}
		if d.LastSyncedAt == nil || d.LastSyncedAt.Before(olderThan) {
			stale = append(stale, *d)
		}
	}

	// Never-synced records first, then oldest sync first
	sort.Slice(stale, func(i, j int) bool {
		a, b := stale[i].LastSyncedAt, stale[j].LastSyncedAt
		switch {
		case a == nil && b == nil:
			return stale[i].CreatedAt.Before(stale[j].CreatedAt)
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})

	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (m *memoryStore) RecordDiscrepancy(_ context.Context, d *Discrepancy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *d
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = m.now()
	}
	m.discrepancies = append(m.discrepancies, stored)
	return nil
}

// Discrepancies returns a copy of recorded discrepancies, for tests
// and the admin API.
func (m *memoryStore) Discrepancies() []Discrepancy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Discrepancy, len(m.discrepancies))
	copy(out, m.discrepancies)
	return out
}
