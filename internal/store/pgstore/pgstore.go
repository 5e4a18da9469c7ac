// Package pgstore is a PostgreSQL store.Store built on pgx.
//
// Records live in one table per collection with a unique constraint on the
// natural key. Inserts use COPY inside a transaction, so a batch is applied
// whole or not at all. Upserts use INSERT ... ON CONFLICT sent as a single
// pgx batch in a transaction.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds pool settings.
type Config struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store implements store.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Open connects, pings, and returns a Store. The caller must Close it.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(pool), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS venues (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL,
	address    TEXT NOT NULL DEFAULT '',
	parent     TEXT NOT NULL DEFAULT '',
	attributes JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT venues_natural_key UNIQUE (name, address)
);

CREATE TABLE IF NOT EXISTS products (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL,
	address    TEXT NOT NULL DEFAULT '',
	parent     TEXT NOT NULL DEFAULT '',
	attributes JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT products_natural_key UNIQUE (name, parent)
);

CREATE TABLE IF NOT EXISTS import_logs (
	id            UUID PRIMARY KEY,
	collection    TEXT NOT NULL,
	file_name     TEXT NOT NULL,
	total_rows    INTEGER NOT NULL,
	imported      INTEGER NOT NULL,
	updated       INTEGER NOT NULL,
	skipped       INTEGER NOT NULL,
	failed        INTEGER NOT NULL,
	processing_ms BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS import_logs_created_at_idx ON import_logs (created_at DESC);
`

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
