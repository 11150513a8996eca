// Package codec converts a ledger record's free-text content to and from
// a (posts, issues) score pair.
//
// The canonical encoding is "<posts>|<issues>". Stores that render content
// as HTML (WordPress wraps it in <p> tags) are tolerated: markup and
// surrounding whitespace are stripped before parsing.
package codec

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/okian/leaderboard/internal/domain/model"
)

// Delimiter separates posts from issues in the encoded content.
const Delimiter = "|"

// ZeroContent is the payload of a freshly created record.
const ZeroContent = "0" + Delimiter + "0"

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Decode parses raw record content into posts and issues.
func Decode(raw string) (posts, issues int, err error) {
	text := strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(raw, "")))

	fields := strings.Split(text, Delimiter)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%w: want 2 fields, got %d in %q", ErrMalformedRecord, len(fields), text)
	}

	posts, err = parseCount(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: posts: %v", ErrMalformedRecord, err)
	}
	issues, err = parseCount(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: issues: %v", ErrMalformedRecord, err)
	}
	return posts, issues, nil
}

func parseCount(field string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

// Encode renders a score pair. Both fields are integers so no escaping is needed.
func Encode(posts, issues int) string {
	return strconv.Itoa(posts) + Delimiter + strconv.Itoa(issues)
}

// Materialize decodes a store record into a PlayerScore keyed by its slug.
func Materialize(rec model.Record) (model.PlayerScore, error) {
	posts, issues, err := Decode(rec.Content)
	if err != nil {
		return model.PlayerScore{}, fmt.Errorf("record %s (%s): %w", rec.ID, rec.Slug, err)
	}
	return model.PlayerScore{
		RecordID: rec.ID,
		Username: rec.Slug,
		Posts:    posts,
		Issues:   issues,
	}, nil
}
