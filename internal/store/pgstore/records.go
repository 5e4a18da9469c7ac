package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/catalogimport/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var recordColumns = []string{"id", "name", "category", "address", "parent", "attributes", "created_at", "updated_at"}

// conflictColumns are the record columns an upsert may be keyed on.
var conflictColumns = map[string]bool{"name": true, "category": true, "address": true, "parent": true}

func tableFor(c store.Collection) (pgx.Identifier, error) {
	if !c.Valid() {
		return nil, store.ErrUnknownCollection
	}
	return pgx.Identifier{string(c)}, nil
}

// Select returns records ordered by creation time.
func (s *Store) Select(ctx context.Context, c store.Collection, f store.Filter) ([]store.Record, error) {
	tbl, err := tableFor(c)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", c, err)
	}

	var names []string
	if len(f.Names) > 0 {
		names = f.Names
	}
	var limit any
	if f.Limit > 0 {
		limit = f.Limit
	}

	query := fmt.Sprintf(`SELECT %s FROM %s
WHERE ($1::text[] IS NULL OR name = ANY($1))
ORDER BY created_at, id
LIMIT $2`, strings.Join(recordColumns, ", "), tbl.Sanitize())

	rows, err := s.pool.Query(ctx, query, names, limit)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", c, err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Record, error) {
		return scanRecord(row)
	})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", c, err)
	}
	return records, nil
}

// Insert copies rows in one transaction.
func (s *Store) Insert(ctx context.Context, c store.Collection, rows []store.Record) ([]store.Record, error) {
	tbl, err := tableFor(c)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", c, err)
	}

	now := s.now()
	out := make([]store.Record, len(rows))
	copyRows := make([][]any, len(rows))
	for i, r := range rows {
		id, err := toPgUUID(r.ID)
		if err != nil {
			return nil, fmt.Errorf("insert %s: record %q: invalid id: %w", c, r.Name, err)
		}
		r.ID = pgUUIDToString(id)
		r.CreatedAt, r.UpdatedAt = now, now
		copyRows[i] = []any{id, toPgText(r.Name), toPgText(r.Category), toPgText(r.Address), toPgText(r.Parent), attributes(r.Attributes), now, now}
		out[i] = r
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert %s: begin transaction: %w", c, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.CopyFrom(ctx, tbl, recordColumns, pgx.CopyFromRows(copyRows)); err != nil {
		return nil, fmt.Errorf("insert %s: %w", c, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("insert %s: commit: %w", c, err)
	}
	return out, nil
}

// Upsert inserts rows or updates category and attributes of the row with
// the same conflict key. The conflict columns must match a unique
// constraint of the table.
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

	query := fmt.Sprintf(`INSERT INTO %s (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (%s) DO UPDATE
SET category = EXCLUDED.category, attributes = EXCLUDED.attributes, updated_at = EXCLUDED.updated_at
RETURNING %s`,
		tbl.Sanitize(), strings.Join(recordColumns, ", "), strings.Join(conflictKeys, ", "), strings.Join(recordColumns, ", "))

	now := s.now()
	batch := &pgx.Batch{}
	for _, r := range rows {
		id, err := toPgUUID(r.ID)
		if err != nil {
			return nil, fmt.Errorf("upsert %s: record %q: invalid id: %w", c, r.Name, err)
		}
		batch.Queue(query, id, toPgText(r.Name), toPgText(r.Category), toPgText(r.Address), toPgText(r.Parent), attributes(r.Attributes), now)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: begin transaction: %w", c, err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	out := make([]store.Record, 0, len(rows))
	for range rows {
		rec, err := scanRecord(br.QueryRow())
		if err != nil {
			br.Close()
			return nil, fmt.Errorf("upsert %s: %w", c, err)
		}
		out = append(out, rec)
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", c, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("upsert %s: commit: %w", c, err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (store.Record, error) {
	var (
		r  store.Record
		id pgtype.UUID
	)
	err := row.Scan(&id, &r.Name, &r.Category, &r.Address, &r.Parent, &r.Attributes, &r.CreatedAt, &r.UpdatedAt)
	r.ID = pgUUIDToString(id)
	return r, err
}

func attributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return map[string]any{}
	}
	return attrs
}
