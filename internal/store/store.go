// Package store provides the key-value persistence substrate behind the
// game archive and statistics. The contract is deliberately narrow: flat
// string keys mapped to string values, with absence reported separately
// from failure. Backends are interchangeable and chosen by configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hand-tracker/internal/config"
)

// KV is the persistence substrate contract
type KV interface {
	// Get returns the value for key; the bool is false when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes the value for key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes the key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open creates the configured backend
func Open(cfg *config.StoreConfig, logger *slog.Logger) (KV, error) {
	switch strings.ToLower(cfg.Backend) {
	case "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3", "":
		return NewSQLite(cfg.SQLite.Path, logger)
	case "redis":
		return NewRedis(&cfg.Redis, logger)
	case "postgres", "postgresql":
		return NewPostgres(&cfg.Postgres, logger)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}
