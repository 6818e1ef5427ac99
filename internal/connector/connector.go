// Package connector binds the identity provider, the session observer and
// the upload bridge into the backend connector the sync runtime drives.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marcus/tdo/internal/auth"
	"github.com/marcus/tdo/internal/config"
	"github.com/marcus/tdo/internal/events"
	tdsync "github.com/marcus/tdo/internal/sync"
)

// IdentityProvider is the subset of the identity API the connector uses.
// GetSession returns nil, nil when nobody is signed in.
type IdentityProvider interface {
	GetSession(ctx context.Context) (*auth.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context) error
}

// RemoteFactory opens the remote store for one upload using creds.
type RemoteFactory func(ctx context.Context, creds Credentials) (tdsync.RemoteStore, error)

// Credentials are what the sync transport and remote store need.
type Credentials struct {
	Endpoint  string
	Token     string
	ExpiresAt *time.Time
}

// BackendConnector is the contract a sync runtime expects from its host.
type BackendConnector interface {
	Init(ctx context.Context) error
	Login(ctx context.Context, id, secret string) error
	FetchCredentials(ctx context.Context) (Credentials, error)
	UploadData(ctx context.Context, q tdsync.Queue) error
}

var _ BackendConnector = (*Connector)(nil)

// Connector owns the current session. It is safe for concurrent use, but
// UploadData calls must be serialized by the caller.
type Connector struct {
	cfg      *config.Config
	identity IdentityProvider
	remote   RemoteFactory
	uploader *tdsync.Uploader
	events   *events.Emitter

	mu      sync.Mutex
	ready   bool
	session *auth.Session
}

// New creates a connector. remote may be nil if UploadData is never called.
func New(cfg *config.Config, identity IdentityProvider, remote RemoteFactory) *Connector {
	return &Connector{
		cfg:      cfg,
		identity: identity,
		remote:   remote,
		uploader: tdsync.NewUploader(),
		events:   events.New(),
	}
}

// Events returns the emitter used for initialized and sessionStarted.
func (c *Connector) Events() *events.Emitter { return c.events }

// Uploader returns the upload bridge so callers can install hooks.
func (c *Connector) Uploader() *tdsync.Uploader { return c.uploader }

// Init loads the current session once. Later and concurrent calls return
// without fetching again. A failed fetch leaves the connector not ready so
// the next call retries.
func (c *Connector) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.ready {
		c.mu.Unlock()
		return nil
	}
	sess, err := c.identity.GetSession(ctx)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("load session: %w", err)
	}
	c.session = sess
	c.ready = true
	c.mu.Unlock()

	slog.Debug("connector: initialized", "signed_in", sess != nil)
	c.events.EmitInitialized()
	return nil
}

// Login exchanges id and secret for a new session.
func (c *Connector) Login(ctx context.Context, id, secret string) error {
	sess, err := c.identity.SignInWithPassword(ctx, id, secret)
	if err != nil {
		return &AuthenticationError{Message: err.Error(), Err: err}
	}
	if sess == nil {
		return &AuthenticationError{Message: "no session returned"}
	}

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	slog.Debug("connector: session started", "user", sess.User.ID)
	c.events.EmitSessionStarted(*sess)
	return nil
}

// Logout signs out and forgets the cached session.
func (c *Connector) Logout(ctx context.Context) error {
	if err := c.identity.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	return nil
}

// Session returns a copy of the session cached by Init or Login, or nil
// when signed out.
func (c *Connector) Session() (*auth.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready && c.session == nil {
		return nil, ErrNotInitialized
	}
	if c.session == nil {
		return nil, nil
	}
	s := *c.session
	return &s, nil
}

// FetchCredentials asks the identity provider for the current session on
// every call; the cached session is never used.
func (c *Connector) FetchCredentials(ctx context.Context) (Credentials, error) {
	sess, err := c.identity.GetSession(ctx)
	if err != nil {
		return Credentials{}, &CredentialsUnavailableError{Reason: "session lookup failed", Err: err}
	}
	if sess == nil {
		return Credentials{}, &CredentialsUnavailableError{Reason: "not signed in"}
	}
	return Credentials{
		Endpoint:  c.cfg.PowerSyncURL,
		Token:     sess.AccessToken,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// UploadData drains one pending transaction from q to the remote store.
func (c *Connector) UploadData(ctx context.Context, q tdsync.Queue) error {
	if c.remote == nil {
		return fmt.Errorf("upload: no remote store configured")
	}
	creds, err := c.FetchCredentials(ctx)
	if err != nil {
		return err
	}
	store, err := c.remote(ctx, creds)
	if err != nil {
		return fmt.Errorf("open remote store: %w", err)
	}
	return c.uploader.UploadData(ctx, store, q)
}
