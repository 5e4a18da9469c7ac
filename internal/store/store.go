// Package store defines the backing store contract used by the import pipeline.
//
// A store exposes two record collections (venues and products) with simple
// select/insert/upsert operations, plus an append-only import log. The
// pipeline treats every call as independently fallible and never assumes
// transactional semantics across calls.
package store

import (
	"context"
	"errors"
	"time"
)

// Collection names a logical record collection.
type Collection string

const (
	Venues   Collection = "venues"
	Products Collection = "products"
)

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	return c == Venues || c == Products
}

// ErrUnknownCollection is returned for a collection other than Venues or Products.
var ErrUnknownCollection = errors.New("unknown collection")

// Record is the canonical persisted shape shared by venues and products.
//
// Address holds the street address of a venue. Parent holds the name of the
// venue a product belongs to. Everything that is not part of the identity or
// the natural key lives in Attributes.
type Record struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Category   string         `json:"category" yaml:"category"`
	Address    string         `json:"address,omitempty" yaml:"address,omitempty"`
	Parent     string         `json:"parent,omitempty" yaml:"parent,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	CreatedAt  time.Time      `json:"createdAt" yaml:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt" yaml:"updatedAt"`
}

// KeyValue returns the value of a natural-key column ("name", "address", "parent").
func (r Record) KeyValue(column string) string {
	switch column {
	case "name":
		return r.Name
	case "address":
		return r.Address
	case "parent":
		return r.Parent
	case "category":
		return r.Category
	default:
		return ""
	}
}

// Filter narrows a Select. The zero Filter selects every record.
type Filter struct {
	Names []string // exact name match; empty means any
	Limit int      // 0 means unlimited
}

// ImportLog is one append-only audit entry per import run.
type ImportLog struct {
	ID           string     `json:"id"`
	Collection   Collection `json:"collection"`
	FileName     string     `json:"fileName"`
	TotalRows    int        `json:"totalRows"`
	Imported     int        `json:"imported"`
	Updated      int        `json:"updated"`
	Skipped      int        `json:"skipped"`
	Failed       int        `json:"failed"`
	ProcessingMs int64      `json:"processingMs"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Store is the backing persistence collaborator.
//
// Insert and Upsert apply one batch; implementations should make a batch
// all-or-nothing where the engine allows it. Upsert identifies existing rows
// by conflictKeys (record column names, e.g. "name", "address").
type Store interface {
	Select(ctx context.Context, c Collection, f Filter) ([]Record, error)
	Insert(ctx context.Context, c Collection, rows []Record) ([]Record, error)
	Upsert(ctx context.Context, c Collection, rows []Record, conflictKeys []string) ([]Record, error)
	AppendLog(ctx context.Context, entry ImportLog) error
	RecentLogs(ctx context.Context, limit int) ([]ImportLog, error)
	Close() error
}

// NaturalKey returns the columns that identify "the same" record in c.
// Venues are keyed on name and address, products on name and owning venue.
func NaturalKey(c Collection) []string {
	switch c {
	case Venues:
		return []string{"name", "address"}
	case Products:
		return []string{"name", "parent"}
	default:
		return nil
	}
}
