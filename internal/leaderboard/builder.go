// Package leaderboard assembles the ranked board from every ledger record
// in the store.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/leaderboard/internal/adapters/repository"
	"github.com/okian/leaderboard/internal/domain/codec"
	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/pkg/logger"
	"github.com/okian/leaderboard/pkg/metrics"
)

// DefaultTitle is shown above the board when none is configured.
const DefaultTitle = "Doggfodd Leaderboard"

// Builder reads the whole ledger and ranks it.
type Builder struct {
	store    repository.Store
	pageSize int
	title    string
	logger   logger.Logger
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithPageSize sets how many records are requested per page.
func WithPageSize(size int) Option {
	return func(b *Builder) {
		if size > 0 {
			b.pageSize = size
		}
	}
}

// WithTitle sets the board title.
func WithTitle(title string) Option {
	return func(b *Builder) {
		if title != "" {
			b.title = title
		}
	}
}

// WithLogger sets a custom logger for the builder.
func WithLogger(l logger.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// New builds a Builder over store.
func New(store repository.Store, opts ...Option) *Builder {
	b := &Builder{
		store:    store,
		pageSize: repository.DefaultPageSize,
		title:    DefaultTitle,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Named("leaderboard")
	}
	return b
}

// PageSize returns the configured page size.
func (b *Builder) PageSize() int { return b.pageSize }

// FetchAll pages through the store until the accumulated record count
// reaches the reported total. An empty page also ends the scan so a total
// that shrinks mid-scan cannot loop forever.
func (b *Builder) FetchAll(ctx context.Context) ([]model.Record, error) {
	var (
		records []model.Record
		pages   int
	)
	for page := 1; ; page++ {
		p, err := b.store.List(ctx, b.pageSize, page)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		pages++
		records = append(records, p.Records...)
		if len(p.Records) == 0 || len(records) >= p.Found {
			break
		}
	}
	metrics.RecordScanPages(pages)
	return records, nil
}

// Build ranks records by total, highest first. Records whose content cannot
// be decoded are left out and counted in skipped. Equal totals keep the
// order the store returned them in.
func (b *Builder) Build(ctx context.Context, records []model.Record) (entries []model.LeaderboardEntry, skipped int) {
	scores := make([]model.PlayerScore, 0, len(records))
	for _, rec := range records {
		score, err := codec.Materialize(rec)
		if err != nil {
			skipped++
			b.logger.Warn(ctx, "skipping malformed record",
				logger.String("id", rec.ID),
				logger.String("slug", rec.Slug),
				logger.Error(err),
			)
			continue
		}
		scores = append(scores, score)
	}
	metrics.RecordMalformedRecords(skipped)

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Total() > scores[j].Total()
	})

	entries = make([]model.LeaderboardEntry, len(scores))
	for i, s := range scores {
		entries[i] = model.LeaderboardEntry{
			Rank:     i + 1,
			Username: s.Username,
			Posts:    s.Posts,
			Issues:   s.Issues,
			Total:    s.Total(),
		}
	}
	return entries, skipped
}

// Aggregate sums posts and halves the issue sum for display.
func Aggregate(entries []model.LeaderboardEntry) model.Totals {
	var posts, issues int
	for _, e := range entries {
		posts += e.Posts
		issues += e.Issues
	}
	return model.Totals{Posts: posts, Issues: float64(issues) / 2}
}

// Board fetches, ranks and totals the ledger.
func (b *Builder) Board(ctx context.Context) (model.Board, error) {
	start := time.Now()
	records, err := b.FetchAll(ctx)
	if err != nil {
		return model.Board{}, err
	}
	entries, skipped := b.Build(ctx, records)
	metrics.UpdateLeaderboardPlayers(len(entries))
	metrics.RecordLeaderboardBuild(float64(time.Since(start).Microseconds()) / 1000)

	return model.Board{
		Title:   b.title,
		Players: len(entries),
		Entries: entries,
		Totals:  Aggregate(entries),
		Skipped: skipped,
	}, nil
}
