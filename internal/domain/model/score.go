// Package model contains domain models passed between layers.
package model

// Record is a raw document as the remote store returns it. The ledger
// treats Slug as the username and Content as the encoded score pair.
type Record struct {
	ID      string // opaque, assigned by the store
	Slug    string
	Title   string
	Content string
}

// Page is one page of a paginated listing together with the store's
// reported total number of matching records.
type Page struct {
	Records []Record
	Found   int
}

// PlayerScore is a ledger record materialized into scores. It lives for the
// duration of one request; the store stays the source of truth.
type PlayerScore struct {
	RecordID string
	Username string
	Posts    int
	Issues   int
}

// Total is always derived, never stored.
func (p PlayerScore) Total() int {
	return p.Posts + p.Issues
}

// LeaderboardEntry is the ranked, read-only projection of a PlayerScore.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Posts    int    `json:"posts"`
	Issues   int    `json:"issues"`
	Total    int    `json:"total"`
}

// Totals are the aggregate figures shown under the leaderboard. Issues is
// halved for display and therefore fractional.
type Totals struct {
	Posts  int     `json:"total_posts"`
	Issues float64 `json:"total_issues"`
}

// Board is everything needed to render the leaderboard page.
type Board struct {
	Title   string             `json:"title"`
	Players int                `json:"total_players"`
	Entries []LeaderboardEntry `json:"players"`
	Totals  Totals             `json:"totals"`
	Skipped int                `json:"skipped_records"`
}

// PostCount is one user's summed post count from the statistics feed.
type PostCount struct {
	Username string
	Posts    int
}
