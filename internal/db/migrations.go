package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

// Migration is one schema upgrade step
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     2,
		Description: "Track discarded uploads and upload progress",
		SQL: `
CREATE TABLE IF NOT EXISTS discarded_ops (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tx_id INTEGER NOT NULL,
    op TEXT NOT NULL,
    table_name TEXT NOT NULL,
    row_id TEXT NOT NULL,
    data TEXT,
    error_code TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL,
    skipped INTEGER NOT NULL DEFAULT 0,
    discarded_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    last_tx_id INTEGER NOT NULL DEFAULT 0,
    last_upload_at TEXT
);
`,
	},
}

// GetSchemaVersion returns the stored schema version, 0 for a new database.
func (db *DB) GetSchemaVersion(ctx context.Context) (int, error) {
	var v string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM schema_info WHERE key = 'version'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		// schema_info is missing before the first run
		return 0, nil
	}
	return strconv.Atoi(v)
}

// RunMigrations creates the base schema and applies pending migrations.
func (db *DB) RunMigrations(ctx context.Context) (int, error) {
	current, err := db.GetSchemaVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	if current >= SchemaVersion {
		return 0, nil
	}

	var run int
	err = db.withWriteLock(ctx, func() error {
		if _, err := db.conn.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		// re-read under the lock in case another process migrated first
		current, err := db.GetSchemaVersion(ctx)
		if err != nil {
			return err
		}
		if current == 0 {
			current = 1
		}
		for _, m := range migrations {
			if m.Version <= current {
				continue
			}
			if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
			}
			slog.Debug("db: migrated", "version", m.Version, "desc", m.Description)
			run++
		}
		_, err = db.conn.ExecContext(ctx,
			`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`, strconv.Itoa(SchemaVersion))
		return err
	})
	return run, err
}
