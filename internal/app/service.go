// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/okian/leaderboard/internal/adapters/repository"
	"github.com/okian/leaderboard/internal/adapters/statsfeed"
	"github.com/okian/leaderboard/internal/domain/identity"
	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/internal/leaderboard"
	"github.com/okian/leaderboard/internal/ledger"
	"github.com/okian/leaderboard/pkg/logger"
	"github.com/okian/leaderboard/pkg/metrics"
)

// Default settings.
const (
	DefaultGitHubLabel = "dogfooded"
	DefaultIssueCredit = 2
	labeledAction      = "labeled"
)

// CreditTarget selects which counter a publish event increments.
type CreditTarget string

const (
	CreditPosts  CreditTarget = "posts"
	CreditIssues CreditTarget = "issues"
)

// IssueEvent is a GitHub issue label notification.
type IssueEvent struct {
	Action      string
	Label       string
	Login       string
	IssueNumber int
}

// PublishEvent is a blog publish notification.
type PublishEvent struct {
	AuthorID string
}

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	directory *identity.Directory
	feed      *statsfeed.Client
	ledger    *ledger.Service
	builder   *leaderboard.Builder

	// Configuration
	githubLabel    string
	issueCredit    int
	publishCredits CreditTarget
	title          string
	pageSize       int

	// State
	started bool

	// Counters
	issuesCredited    atomic.Int64
	postsPublished    atomic.Int64
	playersReconciled atomic.Int64
	eventsIgnored     atomic.Int64
	eventsRejected    atomic.Int64
	unknownIdentities atomic.Int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore sets the ledger store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDirectory sets the identity tables.
func WithDirectory(d *identity.Directory) Option {
	return func(s *Service) {
		if d != nil {
			s.directory = d
		}
	}
}

// WithStatsFeed sets the statistics feed used by ReconcileFromFeed.
func WithStatsFeed(feed *statsfeed.Client) Option {
	return func(s *Service) {
		if feed != nil {
			s.feed = feed
		}
	}
}

// WithGitHubLabel sets the label that earns issue credit.
func WithGitHubLabel(label string) Option {
	return func(s *Service) {
		if label = strings.TrimSpace(label); label != "" {
			s.githubLabel = label
		}
	}
}

// WithIssueCredit sets how many issue points a labeled issue is worth.
func WithIssueCredit(credit int) Option {
	return func(s *Service) {
		if credit > 0 {
			s.issueCredit = credit
		}
	}
}

// WithPublishCredits selects the counter a publish event increments.
func WithPublishCredits(target CreditTarget) Option {
	return func(s *Service) {
		switch target {
		case CreditPosts, CreditIssues:
			s.publishCredits = target
		}
	}
}

// WithTitle sets the leaderboard title.
func WithTitle(title string) Option {
	return func(s *Service) {
		if title != "" {
			s.title = title
		}
	}
}

// WithPageSize sets the page size used when scanning the store.
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		githubLabel:    DefaultGitHubLabel,
		issueCredit:    DefaultIssueCredit,
		publishCredits: CreditPosts,
		title:          leaderboard.DefaultTitle,
		pageSize:       repository.DefaultPageSize,
		logger:         nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start wires the ledger components. Without a configured store the
// service falls back to an in-memory one.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting leaderboard service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Warn(ctx, "no store configured, using memory store")
	}
	if s.directory == nil {
		s.directory = identity.NewDirectory(nil, nil)
	}
	s.ledger = ledger.New(s.store, ledger.WithLogger(s.logger.Named("ledger")))
	s.builder = leaderboard.New(s.store,
		leaderboard.WithPageSize(s.pageSize),
		leaderboard.WithTitle(s.title),
		leaderboard.WithLogger(s.logger.Named("leaderboard")),
	)

	githubLogins, blogAuthors := s.directory.Size()
	s.started = true
	s.logger.Info(ctx, "leaderboard service started",
		logger.String("githubLabel", s.githubLabel),
		logger.Int("issueCredit", s.issueCredit),
		logger.String("publishCredits", string(s.publishCredits)),
		logger.Int("githubPlayers", githubLogins),
		logger.Int("blogAuthors", blogAuthors),
	)

	return nil
}

// Stop releases the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping leaderboard service...")

	if closer, ok := s.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn(context.Background(), "failed to close store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(context.Background(), "leaderboard service stopped")
}

// components returns the wired ledger and builder, or ErrNotStarted.
func (s *Service) components() (*ledger.Service, *leaderboard.Builder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.ledger, s.builder, nil
}

// credit runs the get-or-create, apply, persist pipeline for one user.
func (s *Service) credit(ctx context.Context, l *ledger.Service, username string, apply func(model.PlayerScore) model.PlayerScore) (model.PlayerScore, error) {
	var score model.PlayerScore
	err := runSteps(ctx,
		step{name: "get or create", run: func(ctx context.Context) error {
			var err error
			score, err = l.GetOrCreate(ctx, username)
			return err
		}},
		step{name: "apply", run: func(context.Context) error {
			score = apply(score)
			return nil
		}},
		step{name: "persist", run: func(ctx context.Context) error {
			return l.Persist(ctx, score)
		}},
	)
	return score, err
}

// IssueLabeled credits the issue's sender when the configured label was
// added. Other actions and labels are ignored; unmapped senders and events
// without an issue number are rejected.
func (s *Service) IssueLabeled(ctx context.Context, ev IssueEvent) (Outcome, error) {
	const event = "issue"
	l, _, err := s.components()
	if err != nil {
		return OutcomeFailed, err
	}

	if ev.Action != labeledAction || ev.Label != s.githubLabel {
		s.eventsIgnored.Add(1)
		return s.done(event, OutcomeIgnored), nil
	}

	username, ok := s.directory.GitHubUser(ev.Login)
	if !ok || ev.IssueNumber <= 0 {
		s.eventsRejected.Add(1)
		s.logger.Info(ctx, "rejecting issue event",
			logger.String("login", ev.Login),
			logger.Int("issue", ev.IssueNumber),
			logger.Any("mapped", ok),
		)
		return s.done(event, OutcomeRejected), nil
	}

	score, err := s.credit(ctx, l, username, func(p model.PlayerScore) model.PlayerScore {
		return ledger.ApplyDelta(p, 0, s.issueCredit)
	})
	if err != nil {
		s.logger.Error(ctx, "failed to credit issue",
			logger.String("username", username),
			logger.Int("issue", ev.IssueNumber),
			logger.Error(err),
		)
		s.done(event, OutcomeFailed)
		return OutcomeFailed, fmt.Errorf("credit issue %d to %s: %w", ev.IssueNumber, username, err)
	}

	s.issuesCredited.Add(1)
	s.logger.Info(ctx, "issue credited",
		logger.String("username", username),
		logger.Int("issue", ev.IssueNumber),
		logger.Int("issues", score.Issues),
	)
	return s.done(event, OutcomeCredited), nil
}

// Published credits the post's author. An author with no mapping is
// reported and nothing is written.
func (s *Service) Published(ctx context.Context, ev PublishEvent) (Outcome, error) {
	const event = "publish"
	l, _, err := s.components()
	if err != nil {
		return OutcomeFailed, err
	}

	username, ok := "", false
	if strings.TrimSpace(ev.AuthorID) != "" {
		username, ok = s.directory.BlogAuthor(ev.AuthorID)
	}
	if !ok {
		s.unknownIdentities.Add(1)
		s.logger.Info(ctx, "unknown post author", logger.String("author", ev.AuthorID))
		return s.done(event, OutcomeUnknownIdentity), nil
	}

	postsDelta, issuesDelta := 1, 0
	if s.publishCredits == CreditIssues {
		postsDelta, issuesDelta = 0, 1
	}
	score, err := s.credit(ctx, l, username, func(p model.PlayerScore) model.PlayerScore {
		return ledger.ApplyDelta(p, postsDelta, issuesDelta)
	})
	if err != nil {
		s.logger.Error(ctx, "failed to credit post",
			logger.String("username", username),
			logger.Error(err),
		)
		s.done(event, OutcomeFailed)
		return OutcomeFailed, fmt.Errorf("credit post to %s: %w", username, err)
	}

	s.postsPublished.Add(1)
	s.logger.Info(ctx, "post credited",
		logger.String("username", username),
		logger.Int("posts", score.Posts),
		logger.Int("issues", score.Issues),
	)
	return s.done(event, OutcomePublished), nil
}

// Reconcile overwrites post counts one user at a time, in order. The first
// failure stops the run; users already written keep their new counts.
func (s *Service) Reconcile(ctx context.Context, counts []model.PostCount) (Outcome, error) {
	const event = "reconcile"
	l, _, err := s.components()
	if err != nil {
		return OutcomeFailed, err
	}

	for i, pc := range counts {
		if _, err := s.credit(ctx, l, pc.Username, func(p model.PlayerScore) model.PlayerScore {
			return ledger.Overwrite(p, pc.Posts)
		}); err != nil {
			s.logger.Error(ctx, "reconcile stopped",
				logger.String("username", pc.Username),
				logger.Int("completed", i),
				logger.Int("total", len(counts)),
				logger.Error(err),
			)
			s.done(event, OutcomeFailed)
			return OutcomeFailed, fmt.Errorf("reconcile %s: %w", pc.Username, err)
		}
		s.playersReconciled.Add(1)
		metrics.RecordReconciledPlayer()
	}

	s.logger.Info(ctx, "post counts reconciled", logger.Int("players", len(counts)))
	return s.done(event, OutcomeReconciled), nil
}

// ReconcileFromFeed fetches the configured statistics feed and reconciles it.
func (s *Service) ReconcileFromFeed(ctx context.Context) (Outcome, error) {
	if _, _, err := s.components(); err != nil {
		return OutcomeFailed, err
	}
	if !s.feed.Configured() {
		return OutcomeFailed, statsfeed.ErrNoFeedURL
	}
	counts, err := s.feed.Fetch(ctx)
	if err != nil {
		s.logger.Error(ctx, "failed to fetch statistics feed", logger.Error(err))
		return OutcomeFailed, fmt.Errorf("fetch feed: %w", err)
	}
	return s.Reconcile(ctx, counts)
}

// Leaderboard returns the full ranked board.
func (s *Service) Leaderboard(ctx context.Context) (model.Board, error) {
	_, b, err := s.components()
	if err != nil {
		return model.Board{}, err
	}
	return b.Board(ctx)
}

// Rank returns the board entry for username.
func (s *Service) Rank(ctx context.Context, username string) (model.LeaderboardEntry, error) {
	board, err := s.Leaderboard(ctx)
	if err != nil {
		return model.LeaderboardEntry{}, err
	}
	for _, e := range board.Entries {
		if e.Username == username {
			return e, nil
		}
	}
	return model.LeaderboardEntry{}, fmt.Errorf("%s: %w", username, ErrUnknownPlayer)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	githubLogins, blogAuthors := s.directory.Size()
	stats := map[string]interface{}{
		"started":           s.started,
		"githubLabel":       s.githubLabel,
		"issueCredit":       s.issueCredit,
		"publishCredits":    string(s.publishCredits),
		"pageSize":          s.pageSize,
		"githubPlayers":     githubLogins,
		"blogAuthors":       blogAuthors,
		"feedConfigured":    s.feed.Configured(),
		"issuesCredited":    s.issuesCredited.Load(),
		"postsPublished":    s.postsPublished.Load(),
		"playersReconciled": s.playersReconciled.Load(),
		"eventsIgnored":     s.eventsIgnored.Load(),
		"eventsRejected":    s.eventsRejected.Load(),
		"unknownIdentities": s.unknownIdentities.Load(),
	}

	if guarded, ok := s.store.(*repository.GuardedStore); ok {
		stats["storeDriver"] = guarded.Driver()
		stats["storeTimeoutMs"] = guarded.Timeout().Milliseconds()
	}

	return stats
}

// done records the outcome metric and returns the outcome.
func (s *Service) done(event string, o Outcome) Outcome {
	metrics.RecordEvent(event, o.String())
	return o
}
