// Package wpcom implements the ledger store on top of a WordPress.com site:
// each contributor is one post whose slug is the username and whose
// content is the encoded score pair.
package wpcom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/okian/leaderboard/internal/adapters/repository"
	"github.com/okian/leaderboard/internal/domain/model"
)

const (
	postFields   = "ID,slug,title,content"
	maxErrorBody = 4 << 10
)

// Client talks to the WordPress.com REST API v1.1 for one site.
type Client struct {
	http    *http.Client
	baseURL string
	site    string
	token   string
}

var _ repository.Store = (*Client)(nil)

// New builds a client. The token and site are required.
func New(token, site string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	site = strings.TrimSpace(site)
	if token == "" {
		return nil, fmt.Errorf("wpcom token is required: %w", repository.ErrInvalidArgument)
	}
	if site == "" {
		return nil, fmt.Errorf("wpcom site is required: %w", repository.ErrInvalidArgument)
	}
	c := &Client{
		http:    &http.Client{},
		baseURL: DefaultBaseURL,
		site:    site,
		token:   token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// post mirrors the subset of the REST post object the ledger needs.
type post struct {
	ID      json.Number `json:"ID"`
	Slug    string      `json:"slug"`
	Title   string      `json:"title"`
	Content string      `json:"content"`
}

func (p post) record() model.Record {
	return model.Record{ID: p.ID.String(), Slug: p.Slug, Title: p.Title, Content: p.Content}
}

type postList struct {
	Found int    `json:"found"`
	Posts []post `json:"posts"`
}

type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

// GetBySlug implements repository.Store.
func (c *Client) GetBySlug(ctx context.Context, slug string) (model.Record, error) {
	if strings.TrimSpace(slug) == "" {
		return model.Record{}, fmt.Errorf("slug is required: %w", repository.ErrInvalidArgument)
	}
	q := url.Values{"fields": {postFields}}
	var p post
	if err := c.do(ctx, http.MethodGet, c.sitePath("posts", "slug:"+slug), q, nil, &p); err != nil {
		return model.Record{}, fmt.Errorf("get post by slug %q: %w", slug, err)
	}
	return p.record(), nil
}

// Create implements repository.Store. Posts are published so that the
// default listing returns them.
func (c *Client) Create(ctx context.Context, title, slug, content string) (model.Record, error) {
	if strings.TrimSpace(slug) == "" {
		return model.Record{}, fmt.Errorf("slug is required: %w", repository.ErrInvalidArgument)
	}
	body := map[string]string{
		"title":   title,
		"slug":    slug,
		"content": content,
		"status":  "publish",
	}
	q := url.Values{"fields": {postFields}}
	var p post
	if err := c.do(ctx, http.MethodPost, c.sitePath("posts", "new"), q, body, &p); err != nil {
		return model.Record{}, fmt.Errorf("create post %q: %w", slug, err)
	}
	return p.record(), nil
}

// Update implements repository.Store.
func (c *Client) Update(ctx context.Context, id, content string) (model.Record, error) {
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return model.Record{}, fmt.Errorf("post id %q: %w", id, repository.ErrInvalidArgument)
	}
	q := url.Values{"fields": {postFields}}
	var p post
	if err := c.do(ctx, http.MethodPost, c.sitePath("posts", id), q, map[string]string{"content": content}, &p); err != nil {
		return model.Record{}, fmt.Errorf("update post %s: %w", id, err)
	}
	return p.record(), nil
}

// List implements repository.Store.
func (c *Client) List(ctx context.Context, pageSize, page int) (model.Page, error) {
	if pageSize < 1 || page < 1 {
		return model.Page{}, fmt.Errorf("page %d size %d: %w", page, pageSize, repository.ErrInvalidArgument)
	}
	q := url.Values{
		"number": {strconv.Itoa(pageSize)},
		"page":   {strconv.Itoa(page)},
		"fields": {postFields},
	}
	var l postList
	if err := c.do(ctx, http.MethodGet, c.sitePath("posts"), q, nil, &l); err != nil {
		return model.Page{}, fmt.Errorf("list posts page %d: %w", page, err)
	}
	records := make([]model.Record, 0, len(l.Posts))
	for _, p := range l.Posts {
		records = append(records, p.record())
	}
	return model.Page{Records: records, Found: l.Found}, nil
}

func (c *Client) sitePath(parts ...string) string {
	escaped := make([]string, 0, len(parts)+2)
	escaped = append(escaped, "sites", url.PathEscape(c.site))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %v: %w", err, repository.ErrUnavailable)
	}
	return nil
}

func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%v: %w", err, repository.ErrTimeout)
		}
		return ctxErr
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%v: %w", err, repository.ErrTimeout)
	}
	return fmt.Errorf("%v: %w", err, repository.ErrUnavailable)
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var ae apiError
	_ = json.Unmarshal(raw, &ae)
	detail := strings.TrimSpace(ae.Code + " " + ae.Message)
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}

	var kind error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		kind = repository.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		kind = repository.ErrConflict
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
		kind = repository.ErrUnavailable
	default:
		kind = repository.ErrRejected
	}
	return fmt.Errorf("status %d (%s): %w", resp.StatusCode, detail, kind)
}
