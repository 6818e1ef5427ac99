package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// fixedClock makes timestamps deterministic and strictly increasing.
func fixedClock(db *DB) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var n int
	db.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestInitialize(t *testing.T) {
	dir := t.TempDir()
	db, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(Path(dir)); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	v, err := db.GetSchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("GetSchemaVersion: %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("schema version = %d, want %d", v, SchemaVersion)
	}
}

func TestOpenRequiresInit(t *testing.T) {
	if _, err := Open(t.TempDir()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Open on empty dir: got %v, want ErrNotInitialized", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	db, err := Initialize(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateList(context.Background(), "Groceries", "u1"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	l, err := db.GetList(context.Background(), "groceries")
	if err != nil {
		t.Fatalf("GetList: %v", err)
	}
	if l.Name != "Groceries" {
		t.Errorf("name = %q", l.Name)
	}
	if n, _ := db.RunMigrations(context.Background()); n != 0 {
		t.Errorf("migrations rerun: %d", n)
	}
}
