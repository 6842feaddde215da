package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbStore implements Store backed by PostgreSQL, one row per provider.
// The monotonicity invariants are enforced in SQL so concurrent writers
// cannot move a checkpoint backwards.
type dbStore struct {
	pool *pgxpool.Pool
}

// NewDBStore creates a database-backed checkpoint store
func NewDBStore(pool *pgxpool.Pool) Store {
	return &dbStore{pool: pool}
}

func (d *dbStore) Get(ctx context.Context, providerID string) (*Checkpoint, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT current_page, items_created, items_updated, last_run_at, is_complete
		FROM sync_checkpoints
		WHERE provider_id = $1`, providerID)

	var cp Checkpoint
	err := row.Scan(&cp.CurrentPage, &cp.ItemsCreated, &cp.ItemsUpdated, &cp.LastRunAt, &cp.IsComplete)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint for provider '%s': %w", providerID, err)
	}
	return &cp, nil
}

func (d *dbStore) Upsert(ctx context.Context, providerID string, patch Patch) error {
	page := 0
	if patch.CurrentPage != nil {
		page = *patch.CurrentPage
	}

	_, err := d.pool.Exec(ctx, `
		INSERT INTO sync_checkpoints (provider_id, current_page, items_created, items_updated, last_run_at, is_complete)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_id) DO UPDATE SET
			current_page  = GREATEST(sync_checkpoints.current_page, EXCLUDED.current_page),
			items_created = sync_checkpoints.items_created + EXCLUDED.items_created,
			items_updated = sync_checkpoints.items_updated + EXCLUDED.items_updated,
			last_run_at   = COALESCE(EXCLUDED.last_run_at, sync_checkpoints.last_run_at),
			is_complete   = sync_checkpoints.is_complete OR EXCLUDED.is_complete`,
		providerID, page, patch.ItemsCreated, patch.ItemsUpdated, patch.LastRunAt, patch.Complete)
	if err != nil {
		return fmt.Errorf("failed to upsert checkpoint for provider '%s': %w", providerID, err)
	}
	return nil
}

func (d *dbStore) Reset(ctx context.Context, providerID string) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM sync_checkpoints WHERE provider_id = $1`, providerID)
	if err != nil {
		return fmt.Errorf("failed to reset checkpoint for provider '%s': %w", providerID, err)
	}
	return nil
}
