// Package ledger keeps one score record per contributor in the remote store.
//
// Reads and writes are a plain read-modify-write against the store with no
// compare-and-swap, so concurrent writers to the same username can lose
// updates. The last Persist wins.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/leaderboard/internal/adapters/repository"
	"github.com/okian/leaderboard/internal/domain/codec"
	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/pkg/logger"
	"github.com/okian/leaderboard/pkg/metrics"
)

// Service reads and writes ledger records.
type Service struct {
	store  repository.Store
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a ledger Service on top of store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("ledger")
	}
	return s
}

// GetOrCreate returns the score for username, creating a zeroed record when
// the store reports it does not exist. Only repository.ErrNotFound triggers
// creation; any other lookup failure is returned as is.
func (s *Service) GetOrCreate(ctx context.Context, username string) (model.PlayerScore, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return model.PlayerScore{}, ErrEmptyUsername
	}

	rec, err := s.store.GetBySlug(ctx, username)
	switch {
	case err == nil:
		return codec.Materialize(rec)
	case !errors.Is(err, repository.ErrNotFound):
		return model.PlayerScore{}, fmt.Errorf("lookup %s: %w", username, err)
	}

	rec, err = s.store.Create(ctx, username, username, codec.ZeroContent)
	if errors.Is(err, repository.ErrConflict) {
		// Someone else created it between our lookup and create.
		s.logger.Debug(ctx, "record created concurrently, refetching", logger.String("username", username))
		rec, err = s.store.GetBySlug(ctx, username)
		if err != nil {
			return model.PlayerScore{}, fmt.Errorf("refetch %s: %w", username, err)
		}
		return codec.Materialize(rec)
	}
	if err != nil {
		return model.PlayerScore{}, fmt.Errorf("create %s: %w", username, err)
	}

	metrics.RecordRecordCreated()
	s.logger.Info(ctx, "created ledger record",
		logger.String("username", username),
		logger.String("id", rec.ID),
	)
	return codec.Materialize(rec)
}

// Persist writes the score back to its record.
func (s *Service) Persist(ctx context.Context, score model.PlayerScore) error {
	if score.RecordID == "" {
		return fmt.Errorf("persist %s: %w", score.Username, ErrMissingRecordID)
	}
	if score.Posts < 0 || score.Issues < 0 {
		return fmt.Errorf("persist %s %d|%d: %w", score.Username, score.Posts, score.Issues, ErrNegativeScore)
	}
	content := codec.Encode(score.Posts, score.Issues)
	if _, err := s.store.Update(ctx, score.RecordID, content); err != nil {
		return fmt.Errorf("persist %s: %w", score.Username, err)
	}
	metrics.RecordLedgerWrite()
	s.logger.Debug(ctx, "ledger record updated",
		logger.String("username", score.Username),
		logger.String("content", content),
	)
	return nil
}

// ApplyDelta adds the signed deltas to score. Applying two deltas in turn
// equals applying their sum. Persist refuses a result that went negative.
func ApplyDelta(score model.PlayerScore, postsDelta, issuesDelta int) model.PlayerScore {
	score.Posts += postsDelta
	score.Issues += issuesDelta
	return score
}

// Overwrite replaces the post count and keeps issues.
func Overwrite(score model.PlayerScore, posts int) model.PlayerScore {
	score.Posts = max(posts, 0)
	return score
}
