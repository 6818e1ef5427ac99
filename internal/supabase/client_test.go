package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcus/tdo/internal/auth"
	tdsync "github.com/marcus/tdo/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := capturedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Header: r.Header.Clone()}
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &c.Body)
		}
		captured = append(captured, c)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	store := auth.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	c := New(srv.URL+"/", "anon-key", store)
	return c, &captured
}

func TestSignInWithPassword(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"at-1","token_type":"bearer","expires_in":3600,"expires_at":1893456000,
			"refresh_token":"rt-1","user":{"id":"user-1","email":"a@example.com"}}`)
	})

	sess, err := c.SignInWithPassword(context.Background(), "a@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "at-1", sess.AccessToken)
	assert.Equal(t, "user-1", sess.User.ID)
	require.NotNil(t, sess.ExpiresAt)
	assert.Equal(t, int64(1893456000), sess.ExpiresAt.Unix())

	require.Len(t, *reqs, 1)
	req := (*reqs)[0]
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/auth/v1/token", req.Path)
	assert.Equal(t, "grant_type=password", req.Query)
	assert.Equal(t, "anon-key", req.Header.Get("apikey"))
	assert.Equal(t, "hunter2", req.Body["password"])

	stored, err := c.Sessions.Load()
	require.NoError(t, err)
	assert.Equal(t, "at-1", stored.AccessToken)
}

func TestSignInWithPassword_Rejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`)
	})

	_, err := c.SignInWithPassword(context.Background(), "a@example.com", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid_credentials", apiErr.Code)
	assert.Equal(t, "Invalid login credentials", apiErr.Message)

	stored, err := c.Sessions.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestGetSession_NoSession(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	sess, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Empty(t, *reqs)
}

func TestGetSession_ValidSessionIsNotRefreshed(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	exp := time.Now().Add(time.Hour)
	require.NoError(t, c.Sessions.Save(&auth.Session{AccessToken: "at", RefreshToken: "rt", ExpiresAt: &exp}))

	sess, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at", sess.AccessToken)
	assert.Empty(t, *reqs)
}

func TestGetSession_RefreshesExpiredSession(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"access_token":"at-2","expires_in":3600,"refresh_token":"rt-2"}`)
	})
	exp := time.Now().Add(-time.Minute)
	require.NoError(t, c.Sessions.Save(&auth.Session{
		AccessToken: "at-1", RefreshToken: "rt-1", ExpiresAt: &exp,
		User: auth.User{ID: "user-1"},
	}))

	sess, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-2", sess.AccessToken)
	assert.Equal(t, "user-1", sess.User.ID, "user carried over when refresh omits it")

	require.Len(t, *reqs, 1)
	assert.Equal(t, "grant_type=refresh_token", (*reqs)[0].Query)
	assert.Equal(t, "rt-1", (*reqs)[0].Body["refresh_token"])

	stored, _ := c.Sessions.Load()
	assert.Equal(t, "rt-2", stored.RefreshToken)
}

func TestGetSession_ExpiredWithoutRefreshToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	exp := time.Now().Add(-time.Minute)
	require.NoError(t, c.Sessions.Save(&auth.Session{AccessToken: "at", ExpiresAt: &exp}))

	sess, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSignOutClearsSession(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.Sessions.Save(&auth.Session{AccessToken: "at"}))

	require.NoError(t, c.SignOut(context.Background()))
	require.Len(t, *reqs, 1)
	assert.Equal(t, "/auth/v1/logout", (*reqs)[0].Path)
	assert.Equal(t, "Bearer at", (*reqs)[0].Header.Get("Authorization"))

	stored, _ := c.Sessions.Load()
	assert.Nil(t, stored)
}

func TestRestUpsertUpdateDelete(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	todos := c.Rest("user-token").From("todos")
	ctx := context.Background()

	require.NoError(t, todos.Upsert(ctx, map[string]any{"id": "t1", "description": "buy milk"}))
	require.NoError(t, todos.Update(ctx, "t1", map[string]any{"completed": 1}))
	require.NoError(t, todos.Delete(ctx, "t1"))

	require.Len(t, *reqs, 3)

	up := (*reqs)[0]
	assert.Equal(t, "POST", up.Method)
	assert.Equal(t, "/rest/v1/todos", up.Path)
	assert.Equal(t, "resolution=merge-duplicates,return=minimal", up.Header.Get("Prefer"))
	assert.Equal(t, "Bearer user-token", up.Header.Get("Authorization"))
	assert.Equal(t, "buy milk", up.Body["description"])

	patch := (*reqs)[1]
	assert.Equal(t, "PATCH", patch.Method)
	assert.Equal(t, "id=eq.t1", patch.Query)
	assert.Equal(t, float64(1), patch.Body["completed"])

	del := (*reqs)[2]
	assert.Equal(t, "DELETE", del.Method)
	assert.Equal(t, "id=eq.t1", del.Query)
	assert.Nil(t, del.Body)
}

func TestRestAnonFallback(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NoError(t, c.Rest("").From("lists").Delete(context.Background(), "l1"))
	assert.Equal(t, "Bearer anon-key", (*reqs)[0].Header.Get("Authorization"))
}

func TestRestErrorCarriesCode(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"code":"23503","details":"Key is still referenced from table \"todos\".","hint":null,
			"message":"update or delete on table \"lists\" violates foreign key constraint"}`)
	})

	err := c.Rest("tok").From("lists").Delete(context.Background(), "l1")
	var remoteErr *tdsync.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "lists", remoteErr.Table)
	assert.Equal(t, "23503", remoteErr.Code)
	assert.Equal(t, http.StatusConflict, remoteErr.Status)
	assert.Equal(t, tdsync.Fatal, tdsync.Classify(err))
}

func TestRestErrorWithoutBodyIsTransient(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>bad gateway</html>")
	})

	err := c.Rest("tok").From("todos").Delete(context.Background(), "t1")
	require.Error(t, err)
	var remoteErr *tdsync.RemoteError
	assert.False(t, errors.As(err, &remoteErr))
	assert.Equal(t, tdsync.Transient, tdsync.Classify(err))
}

func TestDecodeError(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantNil  bool
		wantCode string
		wantMsg  string
	}{
		{"postgrest", `{"code":"42501","message":"new row violates row-level security policy"}`, false, "42501", "new row violates row-level security policy"},
		{"gotrue legacy", `{"error":"invalid_grant","error_description":"Invalid login credentials"}`, false, "invalid_grant", "Invalid login credentials"},
		{"gotrue numeric code", `{"code":422,"error_code":"weak_password","msg":"Password too short"}`, false, "weak_password", "Password too short"},
		{"not json", `oops`, true, "", ""},
		{"empty object", `{}`, true, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeError(400, []byte(tt.body))
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMsg, got.Message)
		})
	}
}
