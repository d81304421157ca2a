package credstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lockerd/lockerd"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL
)`

// PostgresStore backs the credential contract with a users table in
// PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func openPostgres(ctx context.Context, dsn string, seed lockerd.User) (Store, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err = pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	store := &PostgresStore{pool: pool}

	if err = store.seedIfEmpty(ctx, seed); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return store, pool.Close, nil
}

func (s *PostgresStore) seedIfEmpty(ctx context.Context, seed lockerd.User) error {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
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

func (s *PostgresStore) Load(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT username, password_hash FROM users`)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	defer rows.Close()

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

func (s *PostgresStore) Save(ctx context.Context, users map[string]string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}

	for name, hash := range users {
		if _, err := tx.Exec(ctx,
			`INSERT INTO users (username, password_hash) VALUES ($1, $2)`, name, hash); err != nil {
			return fmt.Errorf("insert credential %q: %w", name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	return nil
}

func (s *PostgresStore) Find(ctx context.Context, username string) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT password_hash FROM users WHERE username = $1`, username).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("find user %q: %w", username, lockerd.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("find user %q: %w", username, err)
	}

	return hash, nil
}

func (s *PostgresStore) Add(ctx context.Context, username, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2) ON CONFLICT (username) DO NOTHING`,
		username, passwordHash)
	if err != nil {
		return fmt.Errorf("add user %q: %w", username, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("add user %q: %w", username, lockerd.ErrAlreadyExists)
	}

	return nil
}
