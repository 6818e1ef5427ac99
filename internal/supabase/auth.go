package supabase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/marcus/tdo/internal/auth"
)

// expiryMargin refreshes tokens slightly before they expire.
const expiryMargin = 30 * time.Second

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (t *tokenResponse) session(now time.Time) *auth.Session {
	s := &auth.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		User:         auth.User{ID: t.User.ID, Email: t.User.Email},
	}
	switch {
	case t.ExpiresAt > 0:
		exp := time.Unix(t.ExpiresAt, 0).UTC()
		s.ExpiresAt = &exp
	case t.ExpiresIn > 0:
		exp := now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
		s.ExpiresAt = &exp
	}
	return s
}

func (c *Client) token(ctx context.Context, grantType string, body any) (*auth.Session, error) {
	var resp tokenResponse
	err := c.do(ctx, request{
		method: "POST",
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {grantType}},
		body:   body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return resp.session(c.now()), nil
}

// SignInWithPassword exchanges email and password for a session and stores it.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	sess, err := c.token(ctx, "password", map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	if err := c.Sessions.Save(sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// GetSession returns the current session, refreshing it first when the
// access token is about to expire. It returns nil when nobody is signed in
// or the session expired without a refresh token.
func (c *Client) GetSession(ctx context.Context) (*auth.Session, error) {
	sess, err := c.Sessions.Load()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil || !sess.ExpiresWithin(c.now(), expiryMargin) {
		return sess, nil
	}
	if sess.RefreshToken == "" {
		return nil, nil
	}

	refreshed, err := c.token(ctx, "refresh_token", map[string]string{"refresh_token": sess.RefreshToken})
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if refreshed.User.ID == "" {
		refreshed.User = sess.User
	}
	if err := c.Sessions.Save(refreshed); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	slog.Debug("auth: session refreshed", "user", refreshed.User.ID)
	return refreshed, nil
}

// SignOut revokes the session server-side (best effort) and clears it locally.
func (c *Client) SignOut(ctx context.Context) error {
	sess, err := c.Sessions.Load()
	if err == nil && sess != nil && sess.AccessToken != "" {
		if err := c.do(ctx, request{method: "POST", path: "/auth/v1/logout", token: sess.AccessToken}, nil); err != nil {
			slog.Debug("auth: remote logout failed", "err", err)
		}
	}
	return c.Sessions.Clear()
}
