package cmd

import (
	"context"
	"testing"

	"github.com/marcus/tdo/internal/config"
)

func TestIsMutatingCommand(t *testing.T) {
	mutating := [][]string{
		{"add"}, {"a"}, {"done"}, {"complete"}, {"undone"}, {"edit"}, {"delete"}, {"rm"},
		{"lists", "create"}, {"lists", "rename"}, {"lists", "delete"}, {"lists", "rm"},
	}
	for _, path := range mutating {
		c, _, err := rootCmd.Find(path)
		if err != nil {
			t.Fatalf("find %v: %v", path, err)
		}
		if !isMutatingCommand(c) {
			t.Errorf("expected %v to be mutating", path)
		}
	}

	readOnly := [][]string{
		{"list"}, {"show"}, {"lists"}, {"lists", "ls"}, {"sync"}, {"sync", "discarded"},
		{"auth", "status"}, {"auth", "login"}, {"config", "get"}, {"version"}, {"init"},
	}
	for _, path := range readOnly {
		c, _, err := rootCmd.Find(path)
		if err != nil {
			t.Fatalf("find %v: %v", path, err)
		}
		if isMutatingCommand(c) {
			t.Errorf("expected %v to NOT be mutating", path)
		}
	}
}

func TestAutoSyncSkipsWithoutConfig(t *testing.T) {
	old := cfg
	defer func() { cfg = old }()

	// No database exists in DataDir; reaching openDB would only log, but
	// none of these configs should get that far.
	for _, c := range []*config.Config{
		nil,
		{DataDir: t.TempDir()},
		{DataDir: t.TempDir(), Sync: config.SyncConfig{Auto: true}},
	} {
		cfg = c
		autoSyncAfterMutation(context.Background())
	}
}
