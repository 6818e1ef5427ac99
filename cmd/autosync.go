package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/marcus/tdo/internal/db"
)

// mutatingCommands are the command paths (below the root) that queue local
// changes.
var mutatingCommands = map[string]bool{
	"add":          true,
	"done":         true,
	"undone":       true,
	"edit":         true,
	"delete":       true,
	"lists create": true,
	"lists rename": true,
	"lists delete": true,
}

func isMutatingCommand(cmd *cobra.Command) bool {
	path := cmd.Name()
	for p := cmd.Parent(); p != nil && p.HasParent(); p = p.Parent() {
		path = p.Name() + " " + path
	}
	return mutatingCommands[path]
}

// autoSyncAfterMutation uploads what the command just queued. Failures are
// logged only: the change is safe in the queue and the next sync retries it.
func autoSyncAfterMutation(ctx context.Context) {
	if cfg == nil || !cfg.Sync.Auto {
		return
	}
	if err := cfg.RequireAuth(); err != nil {
		return
	}
	if currentUser() == "" {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	database, err := openDB()
	if err != nil {
		slog.Debug("autosync: open db", "err", err)
		return
	}
	defer database.Close()

	conn, backend, err := newConnector(database)
	if err != nil {
		slog.Debug("autosync: connector", "err", err)
		return
	}
	defer backend.Close()

	if cfg.Sync.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Sync.Timeout)
		defer cancel()
	}
	if err := conn.Init(ctx); err != nil {
		slog.Debug("autosync: init", "err", err)
		return
	}
	if err := claimOfflineWrites(ctx, database, conn); err != nil {
		slog.Debug("autosync: claim", "err", err)
		return
	}

	n, err := newRunner(database, conn).Drain(ctx)
	switch {
	case errors.Is(err, db.ErrUploadInProgress):
		slog.Debug("autosync: another upload is running")
	case err != nil:
		slog.Debug("autosync: upload failed", "uploaded", n, "err", err)
	case n > 0:
		slog.Debug("autosync: uploaded", "transactions", n)
	}
}
