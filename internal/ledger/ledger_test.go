package ledger_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/leaderboard/internal/adapters/repository"
	"github.com/okian/leaderboard/internal/domain/codec"
	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/internal/ledger"
	"github.com/okian/leaderboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

// flakyStore wraps a memory store and lets tests inject failures.
type flakyStore struct {
	*repository.MemoryStore
	getErr     error
	createErr  error
	creates    int
	updates    int
	raceCreate bool
}

func (f *flakyStore) GetBySlug(ctx context.Context, slug string) (model.Record, error) {
	if f.getErr != nil {
		return model.Record{}, f.getErr
	}
	return f.MemoryStore.GetBySlug(ctx, slug)
}

func (f *flakyStore) Create(ctx context.Context, title, slug, content string) (model.Record, error) {
	f.creates++
	if f.raceCreate {
		// Another writer wins the race with a non-zero record.
		_, _ = f.MemoryStore.Create(ctx, title, slug, "4|4")
		return model.Record{}, repository.ErrConflict
	}
	if f.createErr != nil {
		return model.Record{}, f.createErr
	}
	return f.MemoryStore.Create(ctx, title, slug, content)
}

func (f *flakyStore) Update(ctx context.Context, id, content string) (model.Record, error) {
	f.updates++
	return f.MemoryStore.Update(ctx, id, content)
}

func TestGetOrCreate(t *testing.T) {
	Convey("Given a ledger over an empty store", t, func() {
		ctx := context.Background()
		store := &flakyStore{MemoryStore: repository.NewMemoryStore()}
		svc := ledger.New(store)

		Convey("When a new username is requested", func() {
			score, err := svc.GetOrCreate(ctx, "alice")
			So(err, ShouldBeNil)

			Convey("Then a zeroed record is created", func() {
				So(score.Username, ShouldEqual, "alice")
				So(score.Posts, ShouldEqual, 0)
				So(score.Issues, ShouldEqual, 0)
				So(score.RecordID, ShouldNotBeEmpty)
				rec, err := store.MemoryStore.GetBySlug(ctx, "alice")
				So(err, ShouldBeNil)
				So(rec.Content, ShouldEqual, codec.ZeroContent)
				So(rec.Title, ShouldEqual, "alice")
			})

			Convey("Then asking again is idempotent", func() {
				again, err := svc.GetOrCreate(ctx, "alice")
				So(err, ShouldBeNil)
				So(again, ShouldResemble, score)
				So(store.creates, ShouldEqual, 1)
				So(store.Count(), ShouldEqual, 1)
			})
		})

		Convey("When the lookup fails with an outage", func() {
			store.getErr = repository.ErrUnavailable
			_, err := svc.GetOrCreate(ctx, "alice")

			Convey("Then the error surfaces and nothing is created", func() {
				So(errors.Is(err, repository.ErrUnavailable), ShouldBeTrue)
				So(store.creates, ShouldEqual, 0)
			})
		})

		Convey("When the lookup times out", func() {
			store.getErr = repository.ErrTimeout
			_, err := svc.GetOrCreate(ctx, "alice")

			Convey("Then the timeout surfaces and nothing is created", func() {
				So(errors.Is(err, repository.ErrTimeout), ShouldBeTrue)
				So(store.creates, ShouldEqual, 0)
			})
		})

		Convey("When create loses a race with another writer", func() {
			store.raceCreate = true
			score, err := svc.GetOrCreate(ctx, "alice")

			Convey("Then the winner's record is returned", func() {
				So(err, ShouldBeNil)
				So(score.Posts, ShouldEqual, 4)
				So(score.Issues, ShouldEqual, 4)
			})
		})

		Convey("When create fails for another reason", func() {
			store.createErr = repository.ErrRejected
			_, err := svc.GetOrCreate(ctx, "alice")

			Convey("Then the error surfaces", func() {
				So(errors.Is(err, repository.ErrRejected), ShouldBeTrue)
			})
		})

		Convey("When the stored content is malformed", func() {
			_, err := store.MemoryStore.Create(ctx, "carol", "carol", "lots")
			So(err, ShouldBeNil)
			_, err = svc.GetOrCreate(ctx, "carol")

			Convey("Then ErrMalformedRecord is returned", func() {
				So(errors.Is(err, codec.ErrMalformedRecord), ShouldBeTrue)
			})
		})

		Convey("When the username is blank", func() {
			_, err := svc.GetOrCreate(ctx, "  ")

			Convey("Then ErrEmptyUsername is returned", func() {
				So(errors.Is(err, ledger.ErrEmptyUsername), ShouldBeTrue)
			})
		})
	})
}

func TestPersist(t *testing.T) {
	Convey("Given an existing record", t, func() {
		ctx := context.Background()
		store := &flakyStore{MemoryStore: repository.NewMemoryStore()}
		svc := ledger.New(store)
		score, err := svc.GetOrCreate(ctx, "bob")
		So(err, ShouldBeNil)

		Convey("When a delta is persisted", func() {
			err := svc.Persist(ctx, ledger.ApplyDelta(score, 1, 2))
			So(err, ShouldBeNil)

			Convey("Then the record holds the encoded pair", func() {
				rec, _ := store.MemoryStore.GetBySlug(ctx, "bob")
				So(rec.Content, ShouldEqual, "1|2")
				So(store.updates, ShouldEqual, 1)
			})
		})

		Convey("When two writers start from the same read", func() {
			first := ledger.ApplyDelta(score, 0, 2)
			second := ledger.ApplyDelta(score, 1, 0)
			So(svc.Persist(ctx, first), ShouldBeNil)
			So(svc.Persist(ctx, second), ShouldBeNil)

			Convey("Then the last write wins", func() {
				rec, _ := store.MemoryStore.GetBySlug(ctx, "bob")
				So(rec.Content, ShouldEqual, "1|0")
			})
		})

		Convey("When the score has no record id", func() {
			err := svc.Persist(ctx, model.PlayerScore{Username: "ghost"})

			Convey("Then ErrMissingRecordID is returned", func() {
				So(errors.Is(err, ledger.ErrMissingRecordID), ShouldBeTrue)
				So(store.updates, ShouldEqual, 0)
			})
		})

		Convey("When a delta takes the score below zero", func() {
			err := svc.Persist(ctx, ledger.ApplyDelta(score, -1, 0))

			Convey("Then ErrNegativeScore is returned and nothing is written", func() {
				So(errors.Is(err, ledger.ErrNegativeScore), ShouldBeTrue)
				So(store.updates, ShouldEqual, 0)
				rec, _ := store.MemoryStore.GetBySlug(ctx, "bob")
				So(rec.Content, ShouldEqual, "0|0")
			})
		})

		Convey("When the record vanished", func() {
			err := svc.Persist(ctx, model.PlayerScore{RecordID: "missing", Username: "bob"})

			Convey("Then the store error surfaces", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestApplyDelta(t *testing.T) {
	Convey("Given a score of 3 posts and 1 issue", t, func() {
		base := model.PlayerScore{Username: "bob", Posts: 3, Issues: 1}

		Convey("Then non-negative deltas never decrease the total", func() {
			for _, d := range [][2]int{{0, 0}, {1, 0}, {0, 2}, {5, 7}} {
				next := ledger.ApplyDelta(base, d[0], d[1])
				So(next.Total(), ShouldBeGreaterThanOrEqualTo, base.Total())
			}
		})

		Convey("Then applying deltas is associative", func() {
			stepwise := ledger.ApplyDelta(ledger.ApplyDelta(base, 1, 2), 3, 4)
			combined := ledger.ApplyDelta(base, 4, 6)
			So(stepwise, ShouldResemble, combined)
		})

		Convey("Then signed deltas stay associative", func() {
			zero := model.PlayerScore{Username: "bob"}
			stepwise := ledger.ApplyDelta(ledger.ApplyDelta(zero, -1, 0), 1, 0)
			So(stepwise, ShouldResemble, ledger.ApplyDelta(zero, 0, 0))
			So(ledger.ApplyDelta(ledger.ApplyDelta(base, 2, -1), -3, 4), ShouldResemble, ledger.ApplyDelta(base, -1, 3))
		})

		Convey("Then a negative delta can take a count below zero", func() {
			next := ledger.ApplyDelta(base, -10, 0)
			So(next.Posts, ShouldEqual, -7)
			So(next.Issues, ShouldEqual, 1)
		})
	})
}

func TestOverwrite(t *testing.T) {
	Convey("Given bob with 3 posts and 1 issue", t, func() {
		base := model.PlayerScore{Username: "bob", Posts: 3, Issues: 1}

		Convey("When posts are overwritten with 7", func() {
			next := ledger.Overwrite(base, 7)

			Convey("Then issues are kept", func() {
				So(codec.Encode(next.Posts, next.Issues), ShouldEqual, "7|1")
			})
		})
	})
}
