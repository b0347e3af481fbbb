package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

const (
	createStateTable = `CREATE TABLE IF NOT EXISTS app_state (
	key TEXT PRIMARY KEY,
	value JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectState = `SELECT value FROM app_state WHERE key = $1`
	upsertState = `INSERT INTO app_state (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
)

// PostgresBackend persists the record as one row of app_state.
type PostgresBackend struct {
	db  *sql.DB
	key string
}

// NewPostgresBackend wraps an open database handle.
func NewPostgresBackend(db *sql.DB, key string) *PostgresBackend {
	if key == "" {
		key = Key
	}
	return &PostgresBackend{db: db, key: key}
}

// OpenPostgres opens dsn with lib/pq and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the state table when missing.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, createStateTable); err != nil {
		return fmt.Errorf("create app_state: %w", err)
	}
	return nil
}

// Load reads the record row.
func (b *PostgresBackend) Load(ctx context.Context) ([]byte, bool, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, selectState, b.key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Save upserts the record row.
func (b *PostgresBackend) Save(ctx context.Context, data []byte) error {
	_, err := b.db.ExecContext(ctx, upsertState, b.key, data)
	return err
}
