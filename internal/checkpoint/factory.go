package checkpoint

import (
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/florasync/florasync/internal/config"
)

// NewStore creates a checkpoint Store based on the configured storage
// type. The pool parameter must not be nil when database storage is
// configured.
func NewStore(cfg *config.Config, pool *pgxpool.Pool) (Store, error) {
	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		if pool == nil {
			return nil, fmt.Errorf("database pool is required when storage type is database")
		}
		return NewDBStore(pool), nil
	case config.StorageTypeFile:
		return NewFileStore(filepath.Join(cfg.GetDataDir(), "checkpoints")), nil
	default:
		return NewFileStore(filepath.Join(cfg.GetDataDir(), "checkpoints")), nil
	}
}
