// Package linkwarden is a minimal client for the Linkwarden REST API,
// covering the collection lookup/create and link submission calls the
// forwarder needs.
package linkwarden

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodySize    = 2 << 20
)

// APIError is a non-2xx response from the Linkwarden API. Server-side
// statuses and rate limits are worth retrying; client errors are not.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("linkwarden: unexpected status %d: %s", e.Status, e.Body)
}

// Transient reports whether the failure is likely to clear on its own.
func (e *APIError) Transient() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// Collection is a Linkwarden collection, the grouping links land in.
type Collection struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Tag labels a submitted link.
type Tag struct {
	Name string `json:"name"`
}

// Link is one submitted bookmark.
type Link struct {
	URL        string     `json:"url"`
	Collection Collection `json:"collection"`
	Tags       []Tag      `json:"tags,omitempty"`
}

// Client talks to one Linkwarden instance with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// Collections lists every collection visible to the token.
func (c *Client) Collections(ctx context.Context) ([]Collection, error) {
	var out struct {
		Response []Collection `json:"response"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/collections", nil, &out); err != nil {
		return nil, err
	}
	return out.Response, nil
}

// CreateCollection creates a collection by name and returns it.
func (c *Client) CreateCollection(ctx context.Context, name string) (Collection, error) {
	body := map[string]string{"name": name}
	var out struct {
		Response Collection `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections", body, &out); err != nil {
		return Collection{}, err
	}
	return out.Response, nil
}

// CreateLink submits one link into a collection.
func (c *Client) CreateLink(ctx context.Context, link Link) error {
	return c.do(ctx, http.MethodPost, "/api/v1/links", link, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("linkwarden: encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("linkwarden: build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("linkwarden: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("linkwarden: read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("linkwarden: %s %s: %w",
			method, path, &APIError{Status: resp.StatusCode, Body: truncate(string(data), 200)})
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("linkwarden: decode %s response: %w", path, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
