package sqlitestore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/store"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "catalog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndSelect(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	rows := []store.Record{
		{Name: "Alpha Roasters", Category: "roastery", Address: "12 Main St", Attributes: map[string]any{"wifi": true}},
		{Name: "Beta Cafe", Category: "cafe", Address: "3 Side Rd"},
	}
	inserted, err := s.Insert(ctx, store.Venues, rows)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if len(inserted) != 2 || inserted[0].ID == "" || inserted[0].CreatedAt.IsZero() {
		t.Fatalf("Insert() = %+v, want ids and timestamps", inserted)
	}

	got, err := s.Select(ctx, store.Venues, store.Filter{})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "Alpha Roasters" || got[1].Name != "Beta Cafe" {
		t.Fatalf("Select() = %+v, want insertion order", got)
	}
	if got[0].Attributes["wifi"] != true {
		t.Errorf("Attributes = %v, want wifi true", got[0].Attributes)
	}
	if got[1].Attributes != nil {
		t.Errorf("empty Attributes = %v, want nil", got[1].Attributes)
	}

	named, err := s.Select(ctx, store.Venues, store.Filter{Names: []string{"Beta Cafe"}})
	if err != nil {
		t.Fatalf("Select(names) error = %v", err)
	}
	if len(named) != 1 || named[0].Name != "Beta Cafe" {
		t.Errorf("Select(names) = %+v, want Beta Cafe only", named)
	}

	limited, err := s.Select(ctx, store.Venues, store.Filter{Limit: 1})
	if err != nil {
		t.Fatalf("Select(limit) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Select(limit) len = %d, want 1", len(limited))
	}
}

func TestInsertBatchRollsBack(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, store.Venues, []store.Record{{Name: "A", Category: "cafe", Address: "1"}}); err != nil {
		t.Fatalf("seed Insert() error = %v", err)
	}

	_, err := s.Insert(ctx, store.Venues, []store.Record{
		{Name: "B", Category: "cafe", Address: "2"},
		{Name: "A", Category: "bar", Address: "1"},
	})
	if err == nil || !strings.Contains(err.Error(), "UNIQUE constraint") {
		t.Fatalf("Insert() error = %v, want unique constraint failure", err)
	}

	got, _ := s.Select(ctx, store.Venues, store.Filter{})
	if len(got) != 1 {
		t.Errorf("after failed batch len = %d, want 1 (batch rolled back)", len(got))
	}
}

func TestUpsertKeepsIdentity(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	first, err := s.Insert(ctx, store.Products, []store.Record{{Name: "Guji", Category: "light", Parent: "Alpha"}})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	s.now = func() time.Time { return first[0].CreatedAt.Add(time.Hour) }
	got, err := s.Upsert(ctx, store.Products, []store.Record{
		{Name: "Guji", Category: "dark", Parent: "Alpha", Attributes: map[string]any{"origin": "Ethiopia"}},
		{Name: "Sidamo", Category: "medium", Parent: "Alpha"},
	}, store.NaturalKey(store.Products))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Upsert() len = %d, want 2", len(got))
	}
	if got[0].ID != first[0].ID {
		t.Errorf("Upsert() id = %s, want %s", got[0].ID, first[0].ID)
	}
	if !got[0].CreatedAt.Equal(first[0].CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, first[0].CreatedAt)
	}
	if !got[0].UpdatedAt.After(got[0].CreatedAt) {
		t.Errorf("UpdatedAt = %v, want after CreatedAt", got[0].UpdatedAt)
	}
	if got[0].Category != "dark" || got[0].Attributes["origin"] != "Ethiopia" {
		t.Errorf("Upsert() = %+v, want updated category and attributes", got[0])
	}

	all, _ := s.Select(ctx, store.Products, store.Filter{})
	if len(all) != 2 {
		t.Errorf("Select() len = %d, want 2", len(all))
	}
}

func TestUpsertRejectsBadKeys(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	rows := []store.Record{{Name: "A", Category: "cafe"}}

	if _, err := s.Upsert(ctx, store.Venues, rows, nil); err == nil {
		t.Error("Upsert(no keys) error = nil, want error")
	}
	if _, err := s.Upsert(ctx, store.Venues, rows, []string{"name; DROP TABLE venues"}); err == nil {
		t.Error("Upsert(bad key) error = nil, want error")
	}
}

func TestUnknownCollection(t *testing.T) {
	s := openTest(t)
	if _, err := s.Select(context.Background(), store.Collection("beans"), store.Filter{}); err == nil {
		t.Error("Select(unknown) error = nil, want error")
	}
}

func TestRecentLogs(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, name := range []string{"a.csv", "b.csv", "c.csv"} {
		err := s.AppendLog(ctx, store.ImportLog{
			Collection: store.Venues,
			FileName:   name,
			TotalRows:  i + 1,
			Imported:   i,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendLog() error = %v", err)
		}
	}

	logs, err := s.RecentLogs(ctx, 2)
	if err != nil {
		t.Fatalf("RecentLogs() error = %v", err)
	}
	if len(logs) != 2 || logs[0].FileName != "c.csv" || logs[1].FileName != "b.csv" {
		t.Fatalf("RecentLogs() = %+v, want c.csv then b.csv", logs)
	}
	if logs[0].Collection != store.Venues || logs[0].TotalRows != 3 {
		t.Errorf("RecentLogs()[0] = %+v", logs[0])
	}
	if !logs[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("CreatedAt = %v, want %v", logs[0].CreatedAt, base.Add(2*time.Minute))
	}
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	defer s.Close()
	if _, err := s.Insert(context.Background(), store.Venues, []store.Record{{Name: "A", Category: "cafe"}}); err != nil {
		t.Errorf("Insert() error = %v", err)
	}
}
