package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"shipline/config"
	"shipline/internal/auth"
	"shipline/internal/models"
)

// TokenSource is the credential store the client reads from and writes back
// to. session.Manager satisfies it.
type TokenSource interface {
	AccessToken() (string, error)
	RefreshToken() (string, error)
	SetTokens(models.TokenPair) error
}

// APIError is a non-2xx response decoded into its message body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: unexpected status %d", e.StatusCode)
}

// Client talks to the shipper REST API. Authenticated requests carry a
// bearer token except for the configured public paths. A 410 response
// triggers a single transparent refresh-and-retry; concurrent 410s share one
// refresh call and replay with the token it produced.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokens      TokenSource
	publicPaths []string

	refreshMu  sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
}

type refreshResult struct {
	token string
	err   error
}

func NewClient(cfg *config.APIConfig, tokens TokenSource) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		tokens:      tokens,
		publicPaths: cfg.PublicPaths,
	}
}

func (c *Client) isPublic(path string) bool {
	for _, p := range c.publicPaths {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

// do issues one request and decodes a 2xx JSON body into out (out may be
// nil). The retried flag mirrors the original client's per-request guard: at
// most one refresh-and-retry per logical call.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.doOnce(ctx, method, path, query, body, out, false)
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body, out any, retried bool) error {
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !c.isPublic(path) {
		token, err := c.tokens.AccessToken()
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone && !retried && !c.isPublic(path) {
		io.Copy(io.Discard, resp.Body)
		if _, err := c.refreshedToken(ctx); err != nil {
			return err
		}
		return c.doOnce(ctx, method, path, query, body, out, true)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var msg struct {
			Message string `json:"message"`
		}
		if data, err := io.ReadAll(resp.Body); err == nil {
			if json.Unmarshal(data, &msg) == nil {
				apiErr.Message = msg.Message
			}
		}
		return apiErr
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// refreshedToken returns a fresh access token, running at most one refresh
// call at a time. Callers that arrive while a refresh is in flight wait for
// its outcome instead of issuing their own.
func (c *Client) refreshedToken(ctx context.Context) (string, error) {
	c.refreshMu.Lock()
	if c.refreshing {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.refreshMu.Unlock()
		select {
		case res := <-ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.refreshing = true
	c.refreshMu.Unlock()

	token, err := c.refresh(ctx)

	c.refreshMu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.refreshMu.Unlock()

	for _, ch := range waiters {
		ch <- refreshResult{token: token, err: err}
	}
	return token, err
}

// refresh exchanges the stored refresh token for a new access token and
// persists the result. A failure propagates to every queued caller.
func (c *Client) refresh(ctx context.Context) (string, error) {
	refreshToken, err := c.tokens.RefreshToken()
	if err != nil {
		return "", err
	}
	if refreshToken == "" {
		return "", auth.ErrInvalidToken
	}
	if err := auth.CheckNotExpired(refreshToken); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/refresh-token", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+refreshToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", &APIError{StatusCode: resp.StatusCode, Message: "token refresh failed"}
	}
	var pair models.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return "", err
	}
	if err := c.tokens.SetTokens(pair); err != nil {
		log.Printf("api: persisting refreshed tokens: %v", err)
	}
	return pair.AccessToken, nil
}
