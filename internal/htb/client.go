// Package htb is the read-only client for the Hack The Box v4 API.
//
// Every call attaches the bearer credential and is bounded by the client
// timeout. Non-2xx responses and network failures surface as *TransientError
// so watchers can retry on their next cycle.
package htb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://labs.hackthebox.com/api/v4"

	// The public storage host serving machine/challenge avatars.
	AvatarBaseURL = "https://htb-mp-prod-public-storage.s3.eu-central-1.amazonaws.com"

	defaultTimeout = 30 * time.Second
	maxBodySize    = 5 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL string
	token   string
	http    HTTPClient
}

type Option func(*Client)

// WithHTTPClient overrides the HTTP client (useful for testing).
func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) { c.http = h }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if hc, ok := c.http.(*http.Client); ok && d > 0 {
			hc.Timeout = d
		}
	}
}

func New(baseURL, token string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// UnreleasedMachines returns the full current unreleased-machines set.
// No cursor is kept between calls; the watcher diffs against its store.
func (c *Client) UnreleasedMachines(ctx context.Context) ([]Machine, error) {
	var out struct {
		Data []Machine `json:"data"`
	}
	if err := c.get(ctx, "machines", "/machine/unreleased", &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// UnreleasedChallenges returns the full current unreleased-challenges set.
func (c *Client) UnreleasedChallenges(ctx context.Context) ([]Challenge, error) {
	var out struct {
		Data []Challenge `json:"data"`
	}
	if err := c.get(ctx, "challenges", "/challenges?state=unreleased", &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Notices returns the current operational notices.
func (c *Client) Notices(ctx context.Context) ([]Notice, error) {
	var out struct {
		Data []Notice `json:"data"`
	}
	if err := c.get(ctx, "notices", "/notices", &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ChallengeInfo fetches the enrichment details for one challenge.
func (c *Client) ChallengeInfo(ctx context.Context, id int64) (*ChallengeDetails, error) {
	var out struct {
		Challenge ChallengeDetails `json:"challenge"`
	}
	if err := c.get(ctx, "challenge info", fmt.Sprintf("/challenge/info/%d", id), &out); err != nil {
		return nil, err
	}
	return &out.Challenge, nil
}

func (c *Client) get(ctx context.Context, op, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("htb: %s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "htbwatch/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransientError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &TransientError{Op: op, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &TransientError{Op: op, Err: err}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("htb: %s: decode: %w", op, err)
	}
	return nil
}

// ParseReleaseTime parses the API's release timestamps ("2006-01-02T15:04:05.000000Z"
// variants included). Returns the zero time for empty or unparseable input.
func ParseReleaseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
