package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_initial.up.sql
var initialSchema string

var schemaTables = []string{"admins", "pages"}

// EnsureSchema applies the initial schema when any required table is
// missing. The SQL is idempotent (IF NOT EXISTS throughout), so running it
// against a partially initialized database is safe.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	ready, err := db.schemaReady(ctx)
	if err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	if ready {
		return nil
	}

	slog.Info("applying initial schema", "tables", schemaTables)
	if _, err := db.Pool.Exec(ctx, initialSchema); err != nil {
		return fmt.Errorf("apply initial schema: %w", err)
	}

	ready, err = db.schemaReady(ctx)
	if err != nil {
		return fmt.Errorf("verify schema: %w", err)
	}
	if !ready {
		return fmt.Errorf("schema incomplete after migration")
	}

	return nil
}

func (db *DB) schemaReady(ctx context.Context) (bool, error) {
	var present int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = ANY($1)
	`, schemaTables).Scan(&present)
	if err != nil {
		return false, err
	}
	return present == len(schemaTables), nil
}
