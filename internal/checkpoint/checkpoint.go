// Package checkpoint provides durable per-provider sync progress
// tracking. A checkpoint is read at the start of a run and committed
// after each fully-processed page, so a mid-run crash loses at most one
// in-flight page and never silently skips one.
package checkpoint

import (
	"context"
	"time"
)

// Checkpoint is the durable ingestion progress for one provider.
// CurrentPage is monotonically non-decreasing and IsComplete is a
// one-way latch; both invariants are enforced by Apply.
type Checkpoint struct {
	// CurrentPage is the last page whose items were fully committed
	CurrentPage int `json:"currentPage" yaml:"currentPage"`

	ItemsCreated int `json:"itemsCreated" yaml:"itemsCreated"`
	ItemsUpdated int `json:"itemsUpdated" yaml:"itemsUpdated"`

	LastRunAt *time.Time `json:"lastRunAt,omitempty" yaml:"lastRunAt,omitempty"`

	// IsComplete latches true when the upstream listing is exhausted
	IsComplete bool `json:"isComplete" yaml:"isComplete"`
}

// Patch is a partial checkpoint update. Counter fields are deltas;
// pointer fields replace the current value when non-nil.
type Patch struct {
	CurrentPage  *int
	ItemsCreated int
	ItemsUpdated int
	LastRunAt    *time.Time
	Complete     bool
}

// Apply merges a patch into the checkpoint, preserving the page
// monotonicity and completion latch invariants.
func (c *Checkpoint) Apply(p Patch) {
	if p.CurrentPage != nil && *p.CurrentPage > c.CurrentPage {
		c.CurrentPage = *p.CurrentPage
	}
	c.ItemsCreated += p.ItemsCreated
	c.ItemsUpdated += p.ItemsUpdated
	if p.LastRunAt != nil {
		c.LastRunAt = p.LastRunAt
	}
	if p.Complete {
		c.IsComplete = true
	}
}

// Store persists checkpoints, one per provider.
type Store interface {
	// Get returns the provider's checkpoint, or nil when none exists yet
	Get(ctx context.Context, providerID string) (*Checkpoint, error)

	// Upsert applies a patch to the provider's checkpoint, creating it
	// if absent
	Upsert(ctx context.Context, providerID string, patch Patch) error

	// Reset deletes the provider's checkpoint. Admin-triggered only.
	Reset(ctx context.Context, providerID string) error
}
