package statsfeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/leaderboard/internal/domain/model"
)

const (
	// DefaultTimeout bounds one feed fetch.
	DefaultTimeout = 10 * time.Second
	maxFeedBytes   = 8 << 20
)

// Client fetches the feed from a fixed URL.
type Client struct {
	url     string
	timeout time.Duration
	http    *http.Client
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout bounds each fetch. Non-positive values keep the default.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New builds a Client for url. An empty url yields a client whose Fetch
// always returns ErrNoFeedURL.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:     strings.TrimSpace(url),
		timeout: DefaultTimeout,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a feed URL is set.
func (c *Client) Configured() bool { return c != nil && c.url != "" }

// Fetch downloads and parses the feed.
func (c *Client) Fetch(ctx context.Context) ([]model.PostCount, error) {
	if !c.Configured() {
		return nil, ErrNoFeedURL
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFeedUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFeedUnavailable, err)
	}
	return Parse(body)
}
