// Package sqlitestore is a single-file store.Store on SQLite, used for local
// imports from the command line.
//
// Each write batch runs in one transaction. Attributes are stored as JSON
// text and timestamps as RFC 3339 text.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/store"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements store.Store on database/sql.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma foreign_keys: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma journal_mode: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS venues (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL,
	address    TEXT NOT NULL DEFAULT '',
	parent     TEXT NOT NULL DEFAULT '',
	attributes TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (name, address)
);

CREATE TABLE IF NOT EXISTS products (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL,
	address    TEXT NOT NULL DEFAULT '',
	parent     TEXT NOT NULL DEFAULT '',
	attributes TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (name, parent)
);

CREATE TABLE IF NOT EXISTS import_logs (
	id            TEXT PRIMARY KEY,
	collection    TEXT NOT NULL,
	file_name     TEXT NOT NULL,
	total_rows    INTEGER NOT NULL,
	imported      INTEGER NOT NULL,
	updated       INTEGER NOT NULL,
	skipped       INTEGER NOT NULL,
	failed        INTEGER NOT NULL,
	processing_ms INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);
`

const recordColumns = "id, name, category, address, parent, attributes, created_at, updated_at"

var conflictColumns = map[string]bool{"name": true, "category": true, "address": true, "parent": true}

func tableFor(c store.Collection) (string, error) {
	if !c.Valid() {
		return "", store.ErrUnknownCollection
	}
	return string(c), nil
}

// Select returns records in insertion order.
func (s *Store) Select(ctx context.Context, c store.Collection, f store.Filter) ([]store.Record, error) {
	tbl, err := tableFor(c)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", c, err)
	}

	query := "SELECT " + recordColumns + " FROM " + tbl
	var args []any
	if len(f.Names) > 0 {
		query += " WHERE name IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(f.Names)), ", ") + ")"
		for _, n := range f.Names {
			args = append(args, n)
		}
	}
	query += " ORDER BY rowid"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", c, err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("select %s: %w", c, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s: %w", c, err)
	}
	return out, nil
}

// Insert adds rows in one transaction.
func (s *Store) Insert(ctx context.Context, c store.Collection, rows []store.Record) ([]store.Record, error) {
	tbl, err := tableFor(c)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", c, err)
	}

	out := make([]store.Record, 0, len(rows))
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+tbl+" ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := s.now().UTC()
		for _, r := range rows {
			if r.ID == "" {
				r.ID = uuid.New().String()
			}
			r.CreatedAt, r.UpdatedAt = now, now
			attrs, err := encodeAttributes(r.Attributes)
			if err != nil {
				return fmt.Errorf("record %q: %w", r.Name, err)
			}
			if _, err := stmt.ExecContext(ctx, r.ID, r.Name, r.Category, r.Address, r.Parent, attrs, formatTime(now), formatTime(now)); err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", c, err)
	}
	return out, nil
}

// Upsert inserts rows or updates category and attributes of the row with
// the same conflict key, in one transaction.
func (s *Store) Upsert(ctx context.Context, c store.Collection, rows []store.Record, conflictKeys []string) ([]store.Record, error) {
	tbl, err := tableFor(c)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", c, err)
	}
	if len(conflictKeys) == 0 {
		return nil, fmt.Errorf("upsert %s: no conflict keys", c)
	}
	for _, k := range conflictKeys {
		if !conflictColumns[k] {
			return nil, fmt.Errorf("upsert %s: invalid conflict key %q", c, k)
		}
	}

	query := "INSERT INTO " + tbl + " (" + recordColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?)" +
		" ON CONFLICT (" + strings.Join(conflictKeys, ", ") + ") DO UPDATE SET" +
		" category = excluded.category, attributes = excluded.attributes, updated_at = excluded.updated_at" +
		" RETURNING " + recordColumns

	out := make([]store.Record, 0, len(rows))
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(s.now().UTC())
		for _, r := range rows {
			if r.ID == "" {
				r.ID = uuid.New().String()
			}
			attrs, err := encodeAttributes(r.Attributes)
			if err != nil {
				return fmt.Errorf("record %q: %w", r.Name, err)
			}
			rec, err := scanRecord(tx.QueryRowContext(ctx, query, r.ID, r.Name, r.Category, r.Address, r.Parent, attrs, now, now))
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", c, err)
	}
	return out, nil
}

// AppendLog inserts one import log entry.
func (s *Store) AppendLog(ctx context.Context, e store.ImportLog) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO import_logs
(id, collection, file_name, total_rows, imported, updated, skipped, failed, processing_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Collection), e.FileName, e.TotalRows, e.Imported, e.Updated, e.Skipped, e.Failed, e.ProcessingMs, formatTime(e.CreatedAt.UTC()))
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// RecentLogs returns up to limit entries, newest first.
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]store.ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, collection, file_name, total_rows, imported, updated, skipped, failed, processing_ms, created_at
FROM import_logs ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent logs: %w", err)
	}
	defer rows.Close()

	var out []store.ImportLog
	for rows.Next() {
		var (
			e                     store.ImportLog
			collection, createdAt string
		)
		if err := rows.Scan(&e.ID, &collection, &e.FileName, &e.TotalRows, &e.Imported, &e.Updated, &e.Skipped, &e.Failed, &e.ProcessingMs, &createdAt); err != nil {
			return nil, fmt.Errorf("recent logs: %w", err)
		}
		e.Collection = store.Collection(collection)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("recent logs: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (store.Record, error) {
	var (
		r                    store.Record
		attrs                string
		createdAt, updatedAt string
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Category, &r.Address, &r.Parent, &attrs, &createdAt, &updatedAt); err != nil {
		return r, err
	}
	if attrs != "" && attrs != "{}" {
		if err := json.Unmarshal([]byte(attrs), &r.Attributes); err != nil {
			return r, fmt.Errorf("decode attributes: %w", err)
		}
	}
	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return r, err
	}
	return r, nil
}

func encodeAttributes(attrs map[string]any) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	return string(b), nil
}

func formatTime(t time.Time) string { return t.Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
