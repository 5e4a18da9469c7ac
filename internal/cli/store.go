package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/config"
	"github.com/JonMunkholm/catalogimport/internal/store"
	"github.com/JonMunkholm/catalogimport/internal/store/memstore"
	"github.com/JonMunkholm/catalogimport/internal/store/pgstore"
	"github.com/JonMunkholm/catalogimport/internal/store/sqlitestore"
)

// openStore opens the backend named by driver. An empty dsn falls back to
// the same environment variables the server reads.
func openStore(ctx context.Context, driver, dsn string) (store.Store, error) {
	switch driver {
	case config.DriverMemory:
		return memstore.New(), nil

	case config.DriverSQLite:
		if dsn == "" {
			dsn = envOr("SQLITE_PATH", "./catalog.db")
		}
		return sqlitestore.Open(dsn)

	case config.DriverPostgres:
		if dsn == "" {
			dsn = envOr("DATABASE_URL", os.Getenv("DB_URL"))
		}
		if dsn == "" {
			return nil, fmt.Errorf("postgres store needs --dsn or DATABASE_URL")
		}
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		st, err := pgstore.Open(connectCtx, pgstore.Config{URL: dsn, MaxConns: 4, MinConns: 1})
		if err != nil {
			return nil, err
		}
		if err := st.EnsureSchema(connectCtx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unknown store %q (want memory, sqlite or postgres)", driver)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
