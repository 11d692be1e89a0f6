package store

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/inventory-manager/internal/config"
)

// Open builds the store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		dsn := cfg.StoreDSN
		if dsn == "" {
			dsn = "file:inventory.db"
		}
		return OpenSQLite(dsn)
	case "postgres":
		if cfg.StoreDSN == "" {
			return nil, fmt.Errorf("store: postgres driver requires STORE_DSN")
		}
		return OpenPostgres(ctx, cfg.StoreDSN)
	}
	return nil, fmt.Errorf("store: unknown driver %q", cfg.StoreDriver)
}
