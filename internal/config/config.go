// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers a YAML file and environment variables on top of New().
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Supported store drivers.
const (
	StoreDriverWPCOM  = "wpcom"
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects json or console output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver picks the ledger backend: wpcom, sqlite or memory.
	StoreDriver string `koanf:"store_driver"`

	// StoreTimeoutMS bounds every store call.
	StoreTimeoutMS int `koanf:"store_timeout_ms"`

	// StorePageSize is the page size used when scanning the ledger.
	StorePageSize int `koanf:"store_page_size"`

	// WPCOMToken, WPCOMSite and WPCOMBaseURL configure the WordPress.com store.
	WPCOMToken   string `koanf:"wpcom_token"`
	WPCOMSite    string `koanf:"wpcom_site"`
	WPCOMBaseURL string `koanf:"wpcom_base_url"`

	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// GitHubLabel is the issue label that earns credit.
	GitHubLabel string `koanf:"github_label"`

	// GitHubWebhookSecret enables X-Hub-Signature-256 verification when set.
	GitHubWebhookSecret string `koanf:"github_webhook_secret"`

	// IssueCredit is the number of issue points per labeled issue.
	IssueCredit int `koanf:"issue_credit"`

	// PublishEventCredits names the counter a publish event increments: posts or issues.
	PublishEventCredits string `koanf:"publish_event_credits"`

	// LeaderboardTitle is shown on the HTML board.
	LeaderboardTitle string `koanf:"leaderboard_title"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// StatsFeedURL is fetched by GET /update-post-counts.
	StatsFeedURL string `koanf:"stats_feed_url"`

	// StatsFeedTimeoutMS bounds one feed fetch.
	StatsFeedTimeoutMS int `koanf:"stats_feed_timeout_ms"`

	// GitHubPlayers maps GitHub logins to ledger usernames.
	GitHubPlayers map[string]string `koanf:"github_players"`

	// BlogAuthors maps blog author ids to ledger usernames.
	BlogAuthors map[string]string `koanf:"blog_authors"`

	// CORSAllowedOrigins lists origins allowed to read the board cross-site.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// New creates a Config with defaults.
func New() *Config {
	c := &Config{
		LogLevel:            "info",
		LogFormat:           "json",
		Addr:                ":9080",
		StoreDriver:         StoreDriverMemory,
		StoreTimeoutMS:      10_000,
		StorePageSize:       100,
		SQLitePath:          "leaderboard.db",
		GitHubLabel:         "dogfooded",
		IssueCredit:         2,
		PublishEventCredits: "posts",
		LeaderboardTitle:    "Doggfodd Leaderboard",
		MaxLeaderboardLimit: 100,
		StatsFeedTimeoutMS:  10_000,
		GitHubPlayers:       map[string]string{},
		BlogAuthors:         map[string]string{},
		CORSAllowedOrigins:  []string{"*"},
	}
	return c
}

// StoreTimeout returns StoreTimeoutMS as a duration.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

// StatsFeedTimeout returns StatsFeedTimeoutMS as a duration.
func (c *Config) StatsFeedTimeout() time.Duration {
	return time.Duration(c.StatsFeedTimeoutMS) * time.Millisecond
}

// Validate checks required settings by presence.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case StoreDriverWPCOM:
		if strings.TrimSpace(c.WPCOMToken) == "" {
			return fmt.Errorf("%w: wpcom_token is required for the wpcom driver", ErrInvalidConfig)
		}
		if strings.TrimSpace(c.WPCOMSite) == "" {
			return fmt.Errorf("%w: wpcom_site is required for the wpcom driver", ErrInvalidConfig)
		}
	case StoreDriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite_path is required for the sqlite driver", ErrInvalidConfig)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if strings.TrimSpace(c.GitHubLabel) == "" {
		return fmt.Errorf("%w: github_label must not be empty", ErrInvalidConfig)
	}
	switch c.PublishEventCredits {
	case "posts", "issues":
	default:
		return fmt.Errorf("%w: publish_event_credits must be posts or issues, got %q", ErrInvalidConfig, c.PublishEventCredits)
	}
	if c.StorePageSize < 1 {
		return fmt.Errorf("%w: store_page_size must be positive", ErrInvalidConfig)
	}
	if c.MaxLeaderboardLimit < 1 {
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	if c.IssueCredit < 1 {
		return fmt.Errorf("%w: issue_credit must be positive", ErrInvalidConfig)
	}
	return nil
}
