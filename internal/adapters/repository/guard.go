package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/pkg/metrics"
)

// GuardedStore decorates a Store with a per-call deadline and metrics. A
// hung remote call surfaces as ErrTimeout instead of blocking the request.
type GuardedStore struct {
	next    Store
	timeout time.Duration
	driver  string
}

var _ Store = (*GuardedStore)(nil)

// Guard wraps next with the configured options.
func Guard(next Store, opts ...Option) *GuardedStore {
	s := &GuardedStore{
		next:    next,
		timeout: DefaultTimeout,
		driver:  "store",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Driver returns the wrapped driver's name.
func (s *GuardedStore) Driver() string { return s.driver }

// Timeout returns the per-call deadline.
func (s *GuardedStore) Timeout() time.Duration { return s.timeout }

// GetBySlug implements Store.
func (s *GuardedStore) GetBySlug(ctx context.Context, slug string) (model.Record, error) {
	var rec model.Record
	err := s.call(ctx, "get", func(ctx context.Context) error {
		var err error
		rec, err = s.next.GetBySlug(ctx, slug)
		return err
	})
	return rec, err
}

// Create implements Store.
func (s *GuardedStore) Create(ctx context.Context, title, slug, content string) (model.Record, error) {
	var rec model.Record
	err := s.call(ctx, "create", func(ctx context.Context) error {
		var err error
		rec, err = s.next.Create(ctx, title, slug, content)
		return err
	})
	return rec, err
}

// Update implements Store.
func (s *GuardedStore) Update(ctx context.Context, id, content string) (model.Record, error) {
	var rec model.Record
	err := s.call(ctx, "update", func(ctx context.Context) error {
		var err error
		rec, err = s.next.Update(ctx, id, content)
		return err
	})
	return rec, err
}

// List implements Store.
func (s *GuardedStore) List(ctx context.Context, pageSize, page int) (model.Page, error) {
	var p model.Page
	err := s.call(ctx, "list", func(ctx context.Context) error {
		var err error
		p, err = s.next.List(ctx, pageSize, page)
		return err
	})
	return p, err
}

// Close closes the wrapped store when it holds resources.
func (s *GuardedStore) Close() error {
	if c, ok := s.next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (s *GuardedStore) call(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil && !errors.Is(err, ErrTimeout) && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%s %s after %s: %w", s.driver, op, s.timeout, ErrTimeout)
	}
	metrics.RecordStoreRequest(op, Classify(err), float64(time.Since(start).Milliseconds()))
	return err
}

// Classify maps an error to a short, stable label for metrics and logs.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
