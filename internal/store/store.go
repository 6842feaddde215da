// Package store persists imported plant records as unpublished drafts
// for manual review, and tracks enrichment discrepancies. The sync
// engine is the only writer; the content platform consumes the drafts.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DraftStatus marks records created by ingestion as unpublished
const DraftStatus = "draft"

// Draft is one imported plant record awaiting review. Provenance
// fields (ProviderID, ExternalID, LastSyncedAt) tie it back to the
// upstream source for idempotent re-import and enrichment.
type Draft struct {
	ID uuid.UUID `json:"id"`

	ProviderID string `json:"providerId"`
	ExternalID string `json:"externalId"`

	CommonName     string   `json:"commonName"`
	ScientificName string   `json:"scientificName"`
	Family         string   `json:"family,omitempty"`
	Genus          string   `json:"genus,omitempty"`
	Cycle          string   `json:"cycle,omitempty"`
	GrowthHabit    string   `json:"growthHabit,omitempty"`
	Watering       string   `json:"watering,omitempty"`
	Sunlight       []string `json:"sunlight,omitempty"`
	Edible         *bool    `json:"edible,omitempty"`
	Poisonous      *bool    `json:"poisonous,omitempty"`

	Status       string     `json:"status"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Fields is a partial update for a draft. Nil fields are left
// untouched, which is how enrichment avoids overwriting curated data
// with empty upstream values.
type Fields struct {
	ScientificName *string
	Family         *string
	Genus          *string
	Cycle          *string
	GrowthHabit    *string
	Watering       *string
	Sunlight       []string
	Edible         *bool
	LastSyncedAt   *time.Time
}

// Discrepancy is a reviewable record of an enrichment lookup that
// found no upstream match. The existing draft is left untouched.
type Discrepancy struct {
	ID         uuid.UUID `json:"id"`
	ProviderID string    `json:"providerId"`
	RecordID   uuid.UUID `json:"recordId"`
	Name       string    `json:"name"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ContentStore is the persistence boundary for imported records
type ContentStore interface {
	// Exists reports whether a record from this provider with this
	// external identifier has already been imported
	Exists(ctx context.Context, providerID, externalID string) (bool, error)

	// CreateDraft stores a new unpublished draft and returns its ID
	CreateDraft(ctx context.Context, draft *Draft) (uuid.UUID, error)

	// UpdateFields applies a partial update to an existing draft
	UpdateFields(ctx context.Context, id uuid.UUID, fields Fields) error

	// ListStale returns up to limit records from this provider that
	// have never been synced or were last synced before olderThan,
	// oldest first
	ListStale(ctx context.Context, providerID string, olderThan time.Time, limit int) ([]Draft, error)

	// RecordDiscrepancy stores a reviewable enrichment miss
	RecordDiscrepancy(ctx context.Context, d *Discrepancy) error
}
