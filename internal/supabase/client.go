// Package supabase is a small HTTP client for a Supabase-compatible backend:
// GoTrue for identity and PostgREST for table writes.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marcus/tdo/internal/auth"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// Client talks to one Supabase project.
type Client struct {
	BaseURL  string
	AnonKey  string
	HTTP     *http.Client
	Sessions *auth.FileStore

	now func() time.Time
}

// New creates a client. sessions persists the signed-in session between runs.
func New(baseURL, anonKey string, sessions *auth.FileStore) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		AnonKey:  anonKey,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		Sessions: sessions,
		now:      time.Now,
	}
}

// APIError is an error body returned by GoTrue or PostgREST.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d: %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// decodeError understands PostgREST ({code,message,details,hint}) and both
// GoTrue shapes ({error,error_description} and {code:int,error_code,msg}).
// It returns nil when body carries no recognisable error.
func decodeError(status int, body []byte) *APIError {
	var raw struct {
		Code             json.RawMessage `json:"code"`
		ErrorCode        string          `json:"error_code"`
		Message          string          `json:"message"`
		Msg              string          `json:"msg"`
		Error            string          `json:"error"`
		ErrorDescription string          `json:"error_description"`
		Details          string          `json:"details"`
		Hint             string          `json:"hint"`
	}
	if json.Unmarshal(body, &raw) != nil {
		return nil
	}

	e := &APIError{Status: status, Details: raw.Details, Hint: raw.Hint}
	var code string
	if json.Unmarshal(raw.Code, &code) == nil {
		e.Code = code
	}
	if e.Code == "" {
		e.Code = raw.ErrorCode
	}
	if e.Code == "" {
		e.Code = raw.Error
	}
	for _, m := range []string{raw.Message, raw.Msg, raw.ErrorDescription} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Code == "" && e.Message == "" {
		return nil
	}
	return e
}

type request struct {
	method  string
	path    string
	query   url.Values
	headers map[string]string
	token   string // bearer; empty falls back to the anon key
	body    any
}

func (c *Client) do(ctx context.Context, r request, result any) error {
	var bodyReader io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	target := c.BaseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", c.AnonKey)
	token := r.token
	if token == "" {
		token = c.AnonKey
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if apiErr := decodeError(resp.StatusCode, respBody); apiErr != nil {
			return apiErr
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: HTTP %d", ErrUnauthorized, resp.StatusCode)
		case http.StatusNotFound:
			return fmt.Errorf("%w: HTTP %d", ErrNotFound, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
