package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbStore implements ContentStore backed by PostgreSQL
type dbStore struct {
	pool *pgxpool.Pool
}

// NewDBStore creates a database-backed content store
func NewDBStore(pool *pgxpool.Pool) ContentStore {
	return &dbStore{pool: pool}
}

func (d *dbStore) Exists(ctx context.Context, providerID, externalID string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM plant_drafts WHERE provider_id = $1 AND external_id = $2
		)`, providerID, externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check existence of %s/%s: %w", providerID, externalID, err)
	}
	return exists, nil
}

func (d *dbStore) CreateDraft(ctx context.Context, draft *Draft) (uuid.UUID, error) {
	id := draft.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	status := draft.Status
	if status == "" {
		status = DraftStatus
	}

	_, err := d.pool.Exec(ctx, `
		INSERT INTO plant_drafts (
			id, provider_id, external_id, common_name, scientific_name,
			family, genus, cycle, growth_habit, watering, sunlight,
			edible, poisonous, status, last_synced_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())`,
		id, draft.ProviderID, draft.ExternalID, draft.CommonName, draft.ScientificName,
		draft.Family, draft.Genus, draft.Cycle, draft.GrowthHabit, draft.Watering, draft.Sunlight,
		draft.Edible, draft.Poisonous, status, draft.LastSyncedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create draft for %s/%s: %w", draft.ProviderID, draft.ExternalID, err)
	}
	return id, nil
}

func (d *dbStore) UpdateFields(ctx context.Context, id uuid.UUID, fields Fields) error {
	// COALESCE keeps the stored value wherever the patch field is NULL,
	// so empty upstream data never clobbers curated fields.
	_, err := d.pool.Exec(ctx, `
		UPDATE plant_drafts SET
			scientific_name = COALESCE($2, scientific_name),
			family          = COALESCE($3, family),
			genus           = COALESCE($4, genus),
			cycle           = COALESCE($5, cycle),
			growth_habit    = COALESCE($6, growth_habit),
			watering        = COALESCE($7, watering),
			sunlight        = COALESCE($8, sunlight),
			edible          = COALESCE($9, edible),
			last_synced_at  = COALESCE($10, last_synced_at)
		WHERE id = $1`,
		id, fields.ScientificName, fields.Family, fields.Genus, fields.Cycle,
		fields.GrowthHabit, fields.Watering, fields.Sunlight, fields.Edible, fields.LastSyncedAt)
	if err != nil {
		return fmt.Errorf("failed to update draft %s: %w", id, err)
	}
	return nil
}

func (d *dbStore) ListStale(ctx context.Context, providerID string, olderThan time.Time, limit int) ([]Draft, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, provider_id, external_id, common_name, scientific_name,
		       family, genus, cycle, growth_habit, watering, sunlight,
		       edible, poisonous, status, last_synced_at, created_at
		FROM plant_drafts
		WHERE provider_id = $1
		  AND (last_synced_at IS NULL OR last_synced_at < $2)
		ORDER BY last_synced_at ASC NULLS FIRST, created_at ASC
		LIMIT $3`, providerID, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale records for provider '%s': %w", providerID, err)
	}
	defer rows.Close()

	var drafts []Draft
	for rows.Next() {
		var draft Draft
		if err := rows.Scan(
			&draft.ID, &draft.ProviderID, &draft.ExternalID, &draft.CommonName, &draft.ScientificName,
			&draft.Family, &draft.Genus, &draft.Cycle, &draft.GrowthHabit, &draft.Watering, &draft.Sunlight,
			&draft.Edible, &draft.Poisonous, &draft.Status, &draft.LastSyncedAt, &draft.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stale record: %w", err)
		}
		drafts = append(drafts, draft)
	}
	return drafts, rows.Err()
}

func (d *dbStore) RecordDiscrepancy(ctx context.Context, disc *Discrepancy) error {
	id := disc.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := d.pool.Exec(ctx, `
		INSERT INTO sync_discrepancies (id, provider_id, record_id, name, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		id, disc.ProviderID, disc.RecordID, disc.Name, disc.Reason)
	if err != nil {
		return fmt.Errorf("failed to record discrepancy for provider '%s': %w", disc.ProviderID, err)
	}
	return nil
}
