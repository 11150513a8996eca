// Package statsfeed reads the external per-user post statistics used to
// reconcile ledger post counts.
//
// The feed is a JSON array of series, one per user:
//
//	[{"label": "bob", "data": [["2024-01", 3], ["2024-02", "4"]]}, ...]
//
// The first element of each data point is ignored; the second is that
// period's post count, as a JSON number or a numeric string.
package statsfeed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/pkg/validate"
)

// Series is one user's entry in the feed.
type Series struct {
	Label string              `json:"label" validate:"required"`
	Data  [][]json.RawMessage `json:"data" validate:"dive,min=2"`
}

// Parse decodes and sums a feed payload.
func Parse(raw []byte) ([]model.PostCount, error) {
	var series []Series
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&series); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after feed", ErrMalformedFeed)
	}
	return Sum(series)
}

// Sum totals each series' counts. Output follows the order in which labels
// first appear; a label that repeats is summed into its first entry.
func Sum(series []Series) ([]model.PostCount, error) {
	index := make(map[string]int, len(series))
	out := make([]model.PostCount, 0, len(series))

	for i := range series {
		s := series[i]
		s.Label = strings.TrimSpace(s.Label)
		if err := validate.Struct(s); err != nil {
			return nil, fmt.Errorf("%w: series %d: %v", ErrMalformedFeed, i, err)
		}

		total := 0
		for j, point := range s.Data {
			n, err := parseCount(point[1])
			if err != nil {
				return nil, fmt.Errorf("%w: %s point %d: %v", ErrMalformedFeed, s.Label, j, err)
			}
			total += n
		}

		if pos, ok := index[s.Label]; ok {
			out[pos].Posts += total
			continue
		}
		index[s.Label] = len(out)
		out = append(out, model.PostCount{Username: s.Label, Posts: total})
	}
	return out, nil
}

func parseCount(raw json.RawMessage) (int, error) {
	text := strings.TrimSpace(string(raw))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	if n, err := strconv.Atoi(text); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative count %d", n)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("count %s is not a number", text)
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("count %s is not a whole number", text)
	}
	return int(f), nil
}
