package wpcom

import (
	"net/http"
	"strings"
)

// DefaultBaseURL is the public WordPress.com REST API root.
const DefaultBaseURL = "https://public-api.wordpress.com/rest/v1.1"

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (tests, proxies).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.baseURL = base
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
