package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileWatcher_SignalsOnMatchingWrites(t *testing.T) {
	dir := t.TempDir()
	w, err := watchFiles(dir, "tdo.db")
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0644))
	select {
	case <-w.C():
		t.Fatal("unexpected signal for unrelated file")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tdo.db-wal"), []byte("x"), 0644))
	select {
	case <-w.C():
	case <-time.After(2 * time.Second):
		t.Fatal("no signal for WAL write")
	}
}
