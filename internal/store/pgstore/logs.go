package pgstore

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/catalogimport/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// AppendLog inserts one import log entry.
func (s *Store) AppendLog(ctx context.Context, e store.ImportLog) error {
	id, err := toPgUUID(e.ID)
	if err != nil {
		return fmt.Errorf("append log: invalid id: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO import_logs
(id, collection, file_name, total_rows, imported, updated, skipped, failed, processing_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, string(e.Collection), e.FileName, e.TotalRows, e.Imported, e.Updated, e.Skipped, e.Failed, e.ProcessingMs, e.CreatedAt)
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
	rows, err := s.pool.Query(ctx, `SELECT id, collection, file_name, total_rows, imported, updated, skipped, failed, processing_ms, created_at
FROM import_logs
ORDER BY created_at DESC, id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent logs: %w", err)
	}

	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.ImportLog, error) {
		var (
			e          store.ImportLog
			id         pgtype.UUID
			collection string
		)
		err := row.Scan(&id, &collection, &e.FileName, &e.TotalRows, &e.Imported, &e.Updated, &e.Skipped, &e.Failed, &e.ProcessingMs, &e.CreatedAt)
		e.ID = pgUUIDToString(id)
		e.Collection = store.Collection(collection)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("recent logs: %w", err)
	}
	return logs, nil
}
