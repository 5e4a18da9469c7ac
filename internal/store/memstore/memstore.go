// Package memstore is an in-memory store.Store.
//
// It is deterministic given a fixed clock and ID source, which makes it the
// default backing store for tests and for dry runs from the command line.
package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/store"
	"github.com/google/uuid"
)

// Store keeps records per collection in insertion order.
type Store struct {
	mu      sync.Mutex
	records map[store.Collection][]store.Record
	logs    []store.ImportLog

	// NewID and Now may be replaced before use for deterministic output.
	NewID func() string
	Now   func() time.Time

	// FailInsert and FailUpsert, when set, are consulted before each batch
	// and abort the batch if they return an error. Used for fault injection.
	FailInsert func(c store.Collection, rows []store.Record) error
	FailUpsert func(c store.Collection, rows []store.Record) error

	// Calls counts write batches per operation ("insert", "upsert").
	Calls map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		records: make(map[store.Collection][]store.Record),
		NewID:   func() string { return uuid.New().String() },
		Now:     time.Now,
		Calls:   make(map[string]int),
	}
}

// Seed adds records to a collection without validation. IDs are assigned
// when missing.
func (s *Store) Seed(c store.Collection, rows ...store.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		if r.ID == "" {
			r.ID = s.NewID()
		}
		s.records[c] = append(s.records[c], cloneRecord(r))
	}
}

// Select returns copies of matching records.
func (s *Store) Select(ctx context.Context, c store.Collection, f store.Filter) ([]store.Record, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("select %s: %w", c, store.ErrUnknownCollection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var names map[string]bool
	if len(f.Names) > 0 {
		names = make(map[string]bool, len(f.Names))
		for _, n := range f.Names {
			names[n] = true
		}
	}

	out := make([]store.Record, 0, len(s.records[c]))
	for _, r := range s.records[c] {
		if names != nil && !names[r.Name] {
			continue
		}
		out = append(out, cloneRecord(r))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// Insert adds rows as one all-or-nothing batch. A row whose natural key is
// already present rejects the whole batch.
func (s *Store) Insert(ctx context.Context, c store.Collection, rows []store.Record) ([]store.Record, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("insert %s: %w", c, store.ErrUnknownCollection)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["insert"]++

	if s.FailInsert != nil {
		if err := s.FailInsert(c, rows); err != nil {
			return nil, err
		}
	}

	keys := store.NaturalKey(c)
	seen := make(map[string]bool, len(s.records[c])+len(rows))
	for _, r := range s.records[c] {
		seen[keyOf(r, keys)] = true
	}

	now := s.Now()
	inserted := make([]store.Record, 0, len(rows))
	for _, r := range rows {
		k := keyOf(r, keys)
		if seen[k] {
			return nil, fmt.Errorf("duplicate key value violates unique constraint %q: %s", string(c)+"_natural_key", k)
		}
		seen[k] = true
		if r.ID == "" {
			r.ID = s.NewID()
		}
		r.CreatedAt, r.UpdatedAt = now, now
		inserted = append(inserted, cloneRecord(r))
	}
	s.records[c] = append(s.records[c], inserted...)
	return cloneRecords(inserted), nil
}

// Upsert inserts rows or replaces the category and attributes of the record
// sharing the same conflict key values. Existing IDs and CreatedAt are kept.
func (s *Store) Upsert(ctx context.Context, c store.Collection, rows []store.Record, conflictKeys []string) ([]store.Record, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("upsert %s: %w", c, store.ErrUnknownCollection)
	}
	if len(conflictKeys) == 0 {
		return nil, fmt.Errorf("upsert %s: no conflict keys", c)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["upsert"]++

	if s.FailUpsert != nil {
		if err := s.FailUpsert(c, rows); err != nil {
			return nil, err
		}
	}

	index := make(map[string]int, len(s.records[c]))
	for i, r := range s.records[c] {
		index[keyOf(r, conflictKeys)] = i
	}

	now := s.Now()
	out := make([]store.Record, 0, len(rows))
	for _, r := range rows {
		k := keyOf(r, conflictKeys)
		if i, ok := index[k]; ok {
			existing := s.records[c][i]
			existing.Category = r.Category
			existing.Attributes = cloneAttrs(r.Attributes)
			existing.UpdatedAt = now
			s.records[c][i] = existing
			out = append(out, cloneRecord(existing))
			continue
		}
		if r.ID == "" {
			r.ID = s.NewID()
		}
		r.CreatedAt, r.UpdatedAt = now, now
		s.records[c] = append(s.records[c], cloneRecord(r))
		index[k] = len(s.records[c]) - 1
		out = append(out, cloneRecord(r))
	}
	return out, nil
}

// AppendLog records an import log entry.
func (s *Store) AppendLog(ctx context.Context, entry store.ImportLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = s.NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.Now()
	}
	s.logs = append(s.logs, entry)
	return nil
}

// RecentLogs returns up to limit entries, newest first.
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]store.ImportLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.ImportLog, len(s.logs))
	copy(out, s.logs)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func keyOf(r store.Record, columns []string) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = r.KeyValue(col)
	}
	return strings.Join(parts, "\x1f")
}

func cloneRecords(in []store.Record) []store.Record {
	out := make([]store.Record, len(in))
	for i, r := range in {
		out[i] = cloneRecord(r)
	}
	return out
}

func cloneRecord(r store.Record) store.Record {
	r.Attributes = cloneAttrs(r.Attributes)
	return r
}

func cloneAttrs(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		out[k] = v
	}
	return out
}
