// Package db is tdo's local SQLite store. Every write to lists or todos
// also appends its CRUD entries to crud_queue in the same SQL transaction,
// which makes the database the pending-operation queue for uploads.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DBFile is the database file name inside the data directory. SQLite's
// -wal and -shm files share it as a prefix.
const DBFile = "tdo.db"

const (
	driver   = "sqlite"
	timeText = time.RFC3339Nano
)

// ErrNotInitialized means the data directory has no database yet.
var ErrNotInitialized = errors.New("database not found: run 'tdo init' first")

// ErrNotFound is returned when an id or name matches nothing.
var ErrNotFound = errors.New("not found")

// ErrAmbiguous is returned when an id prefix matches more than one row.
var ErrAmbiguous = errors.New("ambiguous id prefix")

// DB wraps the database connection
type DB struct {
	conn    *sql.DB
	dataDir string
	now     func() time.Time
}

// Path returns the database file inside dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// Open opens an existing database and runs pending migrations.
func Open(dataDir string) (*DB, error) {
	if _, err := os.Stat(Path(dataDir)); os.IsNotExist(err) {
		return nil, ErrNotInitialized
	}
	return open(dataDir)
}

// Initialize creates the data directory and database if needed.
func Initialize(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return open(dataDir)
}

func open(dataDir string) (*DB, error) {
	conn, err := sql.Open(driver, Path(dataDir))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db, err := Wrap(conn, dataDir)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Wrap prepares an already opened SQLite connection. Lock files are kept
// in dataDir.
func Wrap(conn *sql.DB, dataDir string) (*DB, error) {
	// WAL lets readers run while a writer holds the lock
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	db := &DB{conn: conn, dataDir: dataDir, now: time.Now}
	if _, err := db.RunMigrations(context.Background()); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.conn.Close()
}

// DataDir returns the directory holding the database and lock files.
func (db *DB) DataDir() string {
	return db.dataDir
}

func (db *DB) timestamp() string {
	return db.now().UTC().Format(timeText)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeText, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Warn("db: rollback failed", "err", err)
	}
}
