package store

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/florasync/florasync/internal/config"
)

// NewStore creates a ContentStore based on the configured storage type
func NewStore(cfg *config.Config, pool *pgxpool.Pool) (ContentStore, error) {
	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		if pool == nil {
			return nil, fmt.Errorf("database storage requires a connection pool")
		}
		return NewDBStore(pool), nil
	default:
		return NewMemoryStore(), nil
	}
}
