package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/marcus/tdo/internal/auth"
	"github.com/marcus/tdo/internal/connector"
	"github.com/marcus/tdo/internal/db"
	"github.com/marcus/tdo/internal/pgstore"
	"github.com/marcus/tdo/internal/suggest"
	"github.com/marcus/tdo/internal/supabase"
	tdsync "github.com/marcus/tdo/internal/sync"
)

func openDB() (*db.DB, error) {
	return db.Open(cfg.DataDir)
}

func sessionStore() *auth.FileStore {
	return auth.NewFileStore(cfg.SessionPath())
}

func newSupabase() (*supabase.Client, error) {
	if err := cfg.RequireAuth(); err != nil {
		return nil, err
	}
	return supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, sessionStore()), nil
}

// remoteBackend picks where uploads are replayed. With database_url set the
// queue is written straight to Postgres; otherwise through the REST API with
// the signed-in user's token.
type remoteBackend struct {
	client *supabase.Client

	mu sync.Mutex
	pg *pgstore.Store
}

func (b *remoteBackend) open(ctx context.Context, creds connector.Credentials) (tdsync.RemoteStore, error) {
	if cfg.DatabaseURL == "" {
		return b.client.Rest(creds.Token), nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pg == nil {
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL, cfg.DatabaseSchema)
		if err != nil {
			return nil, err
		}
		b.pg = pg
	}
	return b.pg, nil
}

func (b *remoteBackend) Close() {
	if b.pg != nil {
		b.pg.Close()
	}
}

// newConnector wires the identity client, remote store and local discard log.
// The caller closes the returned backend.
func newConnector(database *db.DB) (*connector.Connector, *remoteBackend, error) {
	client, err := newSupabase()
	if err != nil {
		return nil, nil, err
	}
	backend := &remoteBackend{client: client}
	conn := connector.New(cfg, client, backend.open)

	if database != nil {
		conn.Uploader().OnDiscard = func(ctx context.Context, d tdsync.Discard) {
			if err := database.RecordDiscard(ctx, d); err != nil {
				slog.Warn("record discarded operation", "tx", d.TxID, "err", err)
			}
		}
	}
	return conn, backend, nil
}

// claimOfflineWrites gives rows written while signed out to the signed-in
// user before anything uploads. The connector must be initialized.
func claimOfflineWrites(ctx context.Context, database *db.DB, conn *connector.Connector) error {
	sess, err := conn.Session()
	if err != nil || sess == nil || sess.User.ID == "" {
		return err
	}
	return claimFor(ctx, database, sess.User.ID)
}

func claimFor(ctx context.Context, database *db.DB, userID string) error {
	n, err := database.ClaimUnowned(ctx, userID)
	if err != nil {
		return fmt.Errorf("claim offline changes: %w", err)
	}
	if n > 0 {
		slog.Debug("claimed offline changes", "entries", n)
	}
	return nil
}

// currentUser returns the signed-in user's id, or "" when signed out.
func currentUser() string {
	sess, err := sessionStore().Load()
	if err != nil || sess == nil {
		return ""
	}
	return sess.User.ID
}

// listHint adds a "did you mean" to err when ref names no list.
func listHint(ctx context.Context, database *db.DB, ref string, err error) error {
	if ref == "" || !errors.Is(err, db.ErrNotFound) {
		return err
	}
	lists, lerr := database.ListLists(ctx)
	if lerr != nil {
		return err
	}
	names := make([]string, len(lists))
	for i := range lists {
		names[i] = lists[i].Name
	}
	if near := suggest.Names(ref, names); len(near) > 0 {
		return fmt.Errorf("%w (did you mean %s?)", err, strings.Join(near, ", "))
	}
	return err
}

func failedCount(failed, total int) error {
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d failed", failed, total)
}

// errorLine renders err for the terminal with a hint for common cases.
func errorLine(err error) string {
	var credErr *connector.CredentialsUnavailableError
	if errors.As(err, &credErr) {
		return fmt.Sprintf("Error: %v (run 'tdo auth login')", err)
	}
	return "Error: " + err.Error()
}
