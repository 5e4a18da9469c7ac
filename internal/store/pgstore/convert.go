package pgstore

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// toPgUUID parses s, generating a new UUID when s is empty.
func toPgUUID(s string) (pgtype.UUID, error) {
	if s == "" {
		return pgtype.UUID{Bytes: uuid.New(), Valid: true}, nil
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

// pgUUIDToString returns "" for an invalid UUID.
func pgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// toPgText trims s. Natural key columns are NOT NULL, so empty text stays valid.
func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: strings.TrimSpace(s), Valid: true}
}
