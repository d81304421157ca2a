package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lockerd/lockerd"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL
)`

// SQLiteStore backs the credential contract with a single users table.
type SQLiteStore struct {
	db *sql.DB
}

func openSQLite(ctx context.Context, dsn string, seed lockerd.User) (Store, func(), error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err = db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err = store.seedIfEmpty(ctx, seed); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	cleanup := func() { _ = db.Close() }

	return store, cleanup, nil
}

func (s *SQLiteStore) seedIfEmpty(ctx context.Context, seed lockerd.User) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("count users: %w", err)
	}

	if count > 0 {
		return nil
	}

	if err := s.Add(ctx, seed.Name, seed.PasswordHash); err != nil && !errors.Is(err, lockerd.ErrAlreadyExists) {
		return fmt.Errorf("seed default user: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, password_hash FROM users`)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := make(map[string]string)
	for rows.Next() {
		var name, hash string
		if err := rows.Scan(&name, &hash); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}
		users[name] = hash
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	return users, nil
}

func (s *SQLiteStore) Save(ctx context.Context, users map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}

	for name, hash := range users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, password_hash) VALUES (?, ?)`, name, hash); err != nil {
			return fmt.Errorf("insert credential %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Find(ctx context.Context, username string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE username = ?`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("find user %q: %w", username, lockerd.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("find user %q: %w", username, err)
	}

	return hash, nil
}

func (s *SQLiteStore) Add(ctx context.Context, username, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	if err != nil {
		return fmt.Errorf("add user %q: %w", username, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add user %q: %w", username, err)
	}
	if n == 0 {
		return fmt.Errorf("add user %q: %w", username, lockerd.ErrAlreadyExists)
	}

	return nil
}
