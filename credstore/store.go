// Package credstore provides pluggable credential stores mapping usernames
// to password hashes.
//
// All backends implement the same whole-store contract: Load and Save move
// the entire mapping at once, Find and Add operate on single records. The
// file backend keeps the original human-inspectable JSON layout; sqlite and
// postgres back the same contract with a single users table.
package credstore

import (
	"context"
	"fmt"

	"github.com/lockerd/lockerd"
)

// Store is the credential store contract. Add must be atomic with respect
// to concurrent Adds for the same username: exactly one wins and the rest
// fail with lockerd.ErrAlreadyExists.
type Store interface {
	// Load returns the full username -> password-hash mapping.
	Load(ctx context.Context) (map[string]string, error)

	// Save overwrites the full backing store with the given mapping.
	Save(ctx context.Context, users map[string]string) error

	// Find returns the stored hash for username, or lockerd.ErrNotFound.
	Find(ctx context.Context, username string) (string, error)

	// Add persists a new record, or fails with lockerd.ErrAlreadyExists.
	Add(ctx context.Context, username, passwordHash string) error
}

// Config holds the configuration for connecting to a credential backend.
type Config struct {
	// Type specifies the backend: "file", "sqlite", "postgres" or "memory"
	Type string `mapstructure:"type" validate:"required,oneof=file sqlite postgres memory"`
	// Path is the credential file location (file backend)
	Path string `mapstructure:"path"`
	// DSN is the data source name (sqlite and postgres backends)
	DSN string `mapstructure:"dsn"`
}

// Open connects the configured backend and seeds it with the default
// account if the backing store is empty or does not exist yet. The returned
// cleanup function should be called to release the backend connection.
func Open(ctx context.Context, cfg Config, seed lockerd.User) (Store, func(), error) {
	switch cfg.Type {
	case "file":
		return NewFileStore(cfg.Path, seed), func() {}, nil
	case "sqlite":
		return openSQLite(ctx, cfg.DSN, seed)
	case "postgres":
		return openPostgres(ctx, cfg.DSN, seed)
	case "memory":
		store := NewMemStore()
		store.users[seed.Name] = seed.PasswordHash
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported credential store type: %s", cfg.Type)
	}
}
