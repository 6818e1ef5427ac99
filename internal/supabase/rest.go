package supabase

import (
	"context"
	"errors"
	"net/url"

	tdsync "github.com/marcus/tdo/internal/sync"
)

// Rest is a PostgREST handle authorized with one access token.
type Rest struct {
	c     *Client
	token string
}

// Rest returns a remote store that sends token as the bearer.
// An empty token falls back to the anon key.
func (c *Client) Rest(token string) *Rest {
	return &Rest{c: c, token: token}
}

// From selects a table.
func (r *Rest) From(table string) tdsync.RemoteTable {
	return &restTable{r: r, table: table}
}

type restTable struct {
	r     *Rest
	table string
}

func (t *restTable) path() string { return "/rest/v1/" + url.PathEscape(t.table) }

func idFilter(id string) url.Values {
	return url.Values{"id": {"eq." + id}}
}

// Upsert inserts record or merges it into the row with the same primary key.
func (t *restTable) Upsert(ctx context.Context, record map[string]any) error {
	return t.send(ctx, request{
		method:  "POST",
		path:    t.path(),
		headers: map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"},
		body:    record,
	})
}

// Update patches the row whose id matches.
func (t *restTable) Update(ctx context.Context, id string, fields map[string]any) error {
	return t.send(ctx, request{
		method:  "PATCH",
		path:    t.path(),
		query:   idFilter(id),
		headers: map[string]string{"Prefer": "return=minimal"},
		body:    fields,
	})
}

// Delete removes the row whose id matches.
func (t *restTable) Delete(ctx context.Context, id string) error {
	return t.send(ctx, request{
		method:  "DELETE",
		path:    t.path(),
		query:   idFilter(id),
		headers: map[string]string{"Prefer": "return=minimal"},
	})
}

func (t *restTable) send(ctx context.Context, r request) error {
	r.token = t.r.token
	err := t.r.c.do(ctx, r, nil)
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &tdsync.RemoteError{
			Table:   t.table,
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
			Hint:    apiErr.Hint,
			Status:  apiErr.Status,
			Err:     apiErr,
		}
	}
	return err
}
