// Package replay sends recorded-style GitHub and blog events to a running
// leaderboard service. It backs the replay-events command and is handy for
// smoke testing a deployment.
package replay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/leaderboard/internal/domain/model"
)

// DefaultTimeout bounds one request.
const DefaultTimeout = 30 * time.Second

// Client posts events to the service HTTP API.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithSecret signs issue payloads with X-Hub-Signature-256.
func WithSecret(secret string) Option {
	return func(c *Client) { c.secret = secret }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is the service answer to one replayed event.
type Result struct {
	DeliveryID string
	Status     int
	Body       string
}

// Issue describes a GitHub issues event.
type Issue struct {
	Action string
	Label  string
	Login  string
	Number int
}

type issuePayload struct {
	Action string `json:"action"`
	Label  struct {
		Name string `json:"name"`
	} `json:"label"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
	Issue struct {
		Number int `json:"number"`
	} `json:"issue"`
}

// Issue replays a GitHub issues webhook delivery.
func (c *Client) Issue(ctx context.Context, ev Issue) (Result, error) {
	var p issuePayload
	p.Action = ev.Action
	p.Label.Name = ev.Label
	p.Sender.Login = ev.Login
	p.Issue.Number = ev.Number

	body, err := json.Marshal(p)
	if err != nil {
		return Result{}, fmt.Errorf("marshal issue: %w", err)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-GitHub-Event", "issues")
	if c.secret != "" {
		header.Set("X-Hub-Signature-256", Sign(c.secret, body))
	}
	return c.send(ctx, http.MethodPost, "/github/issue", header, body)
}

// Publish replays a blog publish notification for authorID.
func (c *Client) Publish(ctx context.Context, authorID string) (Result, error) {
	form := url.Values{"post_author": {authorID}}
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(ctx, http.MethodPost, "/webhook", header, []byte(form.Encode()))
}

// Reconcile asks the service to overwrite post counts. Without a feed the
// service fetches its configured one.
func (c *Client) Reconcile(ctx context.Context, feed []byte) (Result, error) {
	if len(feed) == 0 {
		return c.send(ctx, http.MethodGet, "/update-post-counts", nil, nil)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return c.send(ctx, http.MethodPost, "/update-post-counts", header, feed)
}

// Leaderboard fetches the JSON board, truncated to limit when positive.
func (c *Client) Leaderboard(ctx context.Context, limit int) (model.Board, error) {
	path := "/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	res, err := c.send(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return model.Board{}, err
	}
	var b model.Board
	if err := json.Unmarshal([]byte(res.Body), &b); err != nil {
		return model.Board{}, fmt.Errorf("decode leaderboard: %w", err)
	}
	return b, nil
}

func (c *Client) send(ctx context.Context, method, path string, header http.Header, body []byte) (Result, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	res := Result{DeliveryID: uuid.NewString()}
	req.Header.Set("X-GitHub-Delivery", res.DeliveryID)

	resp, err := c.http.Do(req)
	if err != nil {
		return res, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return res, fmt.Errorf("read response: %w", err)
	}
	res.Status = resp.StatusCode
	res.Body = string(raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, fmt.Errorf("%w: %s %s: %d %s", ErrUnexpectedStatus, method, path, resp.StatusCode, strings.TrimSpace(res.Body))
	}
	return res, nil
}

// Sign returns the X-Hub-Signature-256 value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
