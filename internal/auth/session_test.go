package auth

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json"))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, got, "missing file means no session")

	exp := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	sess := &Session{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    &exp,
		User:         User{ID: "u1", Email: "a@example.com"},
	}
	require.NoError(t, store.Save(sess))

	got, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "at", got.AccessToken)
	assert.Equal(t, "u1", got.User.ID)
	assert.True(t, exp.Equal(*got.ExpiresAt))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(store.Path())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear(), "clearing twice is fine")
	got, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestSessionExpiresWithin(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	exp := now.Add(time.Minute)
	s := &Session{ExpiresAt: &exp}

	assert.False(t, s.ExpiresWithin(now, 30*time.Second))
	assert.True(t, s.ExpiresWithin(now, time.Minute))
	assert.True(t, s.ExpiresWithin(now.Add(2*time.Minute), 0))
	assert.False(t, (&Session{}).ExpiresWithin(now, time.Hour))
}
