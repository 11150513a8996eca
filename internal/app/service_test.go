package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/leaderboard/internal/adapters/repository"
	"github.com/okian/leaderboard/internal/adapters/statsfeed"
	service "github.com/okian/leaderboard/internal/app"
	"github.com/okian/leaderboard/internal/domain/codec"
	"github.com/okian/leaderboard/internal/domain/identity"
	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// outageStore fails every lookup with the configured error.
type outageStore struct {
	*repository.MemoryStore
	err error
}

func (o *outageStore) GetBySlug(context.Context, string) (model.Record, error) {
	return model.Record{}, o.err
}

func newDirectory() *identity.Directory {
	return identity.NewDirectory(
		map[string]string{"Alice-GH": "alice", "bobby": "bob"},
		map[string]string{"1001": "alice", "1002": "bob"},
	)
}

func startService(store repository.Store, opts ...service.Option) *service.Service {
	opts = append([]service.Option{
		service.WithStore(store),
		service.WithDirectory(newDirectory()),
		service.WithGitHubLabel("dogfooded"),
	}, opts...)
	svc := service.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return svc
}

func content(store *repository.MemoryStore, slug string) string {
	rec, err := store.GetBySlug(context.Background(), slug)
	if err != nil {
		return ""
	}
	return rec.Content
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then handlers refuse to run before Start", func() {
			_, err := svc.IssueLabeled(context.Background(), service.IssueEvent{})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("When starting and stopping the service", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			svc.Stop()
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_IssueLabeled(t *testing.T) {
	Convey("Given a started service over an empty store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		svc := startService(store)
		defer svc.Stop()

		Convey("When alice's issue gets the configured label", func() {
			out, err := svc.IssueLabeled(ctx, service.IssueEvent{
				Action: "labeled", Label: "dogfooded", Login: "alice-gh", IssueNumber: 42,
			})

			Convey("Then her record is created and credited two issues", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, service.OutcomeCredited)
				So(out.Token(), ShouldEqual, "OK")
				So(content(store, "alice"), ShouldEqual, "0|2")
			})

			Convey("And a second label adds two more", func() {
				_, err := svc.IssueLabeled(ctx, service.IssueEvent{
					Action: "labeled", Label: "dogfooded", Login: "ALICE-GH", IssueNumber: 43,
				})
				So(err, ShouldBeNil)
				So(content(store, "alice"), ShouldEqual, "0|4")
			})
		})

		Convey("When another label or action arrives", func() {
			for _, ev := range []service.IssueEvent{
				{Action: "labeled", Label: "bug", Login: "alice-gh", IssueNumber: 1},
				{Action: "unlabeled", Label: "dogfooded", Login: "alice-gh", IssueNumber: 1},
				{Action: "opened", Login: "alice-gh", IssueNumber: 1},
				{Login: "alice-gh"},
			} {
				out, err := svc.IssueLabeled(ctx, ev)
				So(err, ShouldBeNil)
				So(out.Token(), ShouldEqual, "nothing to do here")
			}

			Convey("Then nothing is written", func() {
				So(store.Count(), ShouldEqual, 0)
			})
		})

		Convey("When the sender is unknown or the issue number is missing", func() {
			unknown, err := svc.IssueLabeled(ctx, service.IssueEvent{
				Action: "labeled", Label: "dogfooded", Login: "stranger", IssueNumber: 1,
			})
			So(err, ShouldBeNil)
			missing, err := svc.IssueLabeled(ctx, service.IssueEvent{
				Action: "labeled", Label: "dogfooded", Login: "alice-gh",
			})
			So(err, ShouldBeNil)

			Convey("Then both are rejected without writes", func() {
				So(unknown.Token(), ShouldEqual, "nope")
				So(missing.Token(), ShouldEqual, "nope")
				So(store.Count(), ShouldEqual, 0)
			})
		})

		Convey("When a custom credit is configured", func() {
			custom := startService(store, service.WithIssueCredit(5))
			defer custom.Stop()
			_, err := custom.IssueLabeled(ctx, service.IssueEvent{
				Action: "labeled", Label: "dogfooded", Login: "bobby", IssueNumber: 7,
			})

			Convey("Then that many issues are added", func() {
				So(err, ShouldBeNil)
				So(content(store, "bob"), ShouldEqual, "0|5")
			})
		})
	})

	Convey("Given a store that is down", t, func() {
		mem := repository.NewMemoryStore()
		svc := startService(&outageStore{MemoryStore: mem, err: repository.ErrUnavailable})
		defer svc.Stop()

		out, err := svc.IssueLabeled(context.Background(), service.IssueEvent{
			Action: "labeled", Label: "dogfooded", Login: "alice-gh", IssueNumber: 1,
		})

		Convey("Then the failure surfaces and no record is created", func() {
			So(errors.Is(err, repository.ErrUnavailable), ShouldBeTrue)
			So(out, ShouldEqual, service.OutcomeFailed)
			So(mem.Count(), ShouldEqual, 0)
		})
	})
}

func TestService_Published(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		svc := startService(store)
		defer svc.Stop()

		Convey("When a mapped author publishes", func() {
			out, err := svc.Published(ctx, service.PublishEvent{AuthorID: "1002"})

			Convey("Then one post is credited", func() {
				So(err, ShouldBeNil)
				So(out.Token(), ShouldEqual, "mmm points.")
				So(content(store, "bob"), ShouldEqual, "1|0")
			})
		})

		Convey("When an unmapped author publishes", func() {
			out, err := svc.Published(ctx, service.PublishEvent{AuthorID: "9999"})

			Convey("Then the author is unknown and no record is created", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, service.OutcomeUnknownIdentity)
				So(out.Token(), ShouldEqual, "omergersh i dunno you!")
				So(store.Count(), ShouldEqual, 0)
			})
		})

		Convey("When the author id is blank", func() {
			out, err := svc.Published(ctx, service.PublishEvent{AuthorID: "  "})

			Convey("Then the author is unknown and no record is created", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, service.OutcomeUnknownIdentity)
				So(store.Count(), ShouldEqual, 0)
			})
		})

		Convey("When publish events credit issues", func() {
			issues := startService(store, service.WithPublishCredits(service.CreditIssues))
			defer issues.Stop()
			_, err := issues.Published(ctx, service.PublishEvent{AuthorID: "1001"})

			Convey("Then the issue counter moves instead", func() {
				So(err, ShouldBeNil)
				So(content(store, "alice"), ShouldEqual, "0|1")
			})
		})

		Convey("When a stored record is malformed", func() {
			_, _ = store.Create(ctx, "bob", "bob", "not a score")
			_, err := svc.Published(ctx, service.PublishEvent{AuthorID: "1002"})

			Convey("Then the event fails and the record is left alone", func() {
				So(errors.Is(err, codec.ErrMalformedRecord), ShouldBeTrue)
				So(content(store, "bob"), ShouldEqual, "not a score")
			})
		})
	})
}

func TestService_Reconcile(t *testing.T) {
	Convey("Given bob with 3 posts and 1 issue", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		_, _ = store.Create(ctx, "bob", "bob", "3|1")
		svc := startService(store)
		defer svc.Stop()

		Convey("When the feed reports 7 posts for bob and 2 for a newcomer", func() {
			out, err := svc.Reconcile(ctx, []model.PostCount{
				{Username: "bob", Posts: 7},
				{Username: "carol", Posts: 2},
			})

			Convey("Then posts are overwritten and issues kept", func() {
				So(err, ShouldBeNil)
				So(out.Token(), ShouldEqual, "done")
				So(content(store, "bob"), ShouldEqual, "7|1")
				So(content(store, "carol"), ShouldEqual, "2|0")
				So(svc.GetStats()["playersReconciled"], ShouldEqual, int64(2))
			})
		})

		Convey("When a record in the middle is malformed", func() {
			_, _ = store.Create(ctx, "mallory", "mallory", "??")
			_, err := svc.Reconcile(ctx, []model.PostCount{
				{Username: "bob", Posts: 7},
				{Username: "mallory", Posts: 1},
				{Username: "dave", Posts: 3},
			})

			Convey("Then the run stops at the failure", func() {
				So(errors.Is(err, codec.ErrMalformedRecord), ShouldBeTrue)
				So(content(store, "bob"), ShouldEqual, "7|1")
				So(content(store, "dave"), ShouldEqual, "")
			})
		})
	})

	Convey("Given a statistics feed", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"label":"bob","data":[["a",3],["b","4"]]}]`))
		}))
		defer srv.Close()

		ctx := context.Background()
		store := repository.NewMemoryStore()
		_, _ = store.Create(ctx, "bob", "bob", "3|1")
		svc := startService(store, service.WithStatsFeed(statsfeed.New(srv.URL, statsfeed.WithTimeout(time.Second))))
		defer svc.Stop()

		out, err := svc.ReconcileFromFeed(ctx)

		Convey("Then the summed counts are reconciled", func() {
			So(err, ShouldBeNil)
			So(out, ShouldEqual, service.OutcomeReconciled)
			So(content(store, "bob"), ShouldEqual, "7|1")
		})
	})

	Convey("Given no statistics feed", t, func() {
		svc := startService(repository.NewMemoryStore())
		defer svc.Stop()
		_, err := svc.ReconcileFromFeed(context.Background())

		Convey("Then ErrNoFeedURL is returned", func() {
			So(errors.Is(err, statsfeed.ErrNoFeedURL), ShouldBeTrue)
		})
	})
}

func TestService_Leaderboard(t *testing.T) {
	Convey("Given a populated ledger", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		_, _ = store.Create(ctx, "alice", "alice", "0|2")
		_, _ = store.Create(ctx, "bob", "bob", "7|1")
		svc := startService(store, service.WithTitle("Dogfood"))
		defer svc.Stop()

		Convey("When the board is requested", func() {
			board, err := svc.Leaderboard(ctx)

			Convey("Then it is ranked by total", func() {
				So(err, ShouldBeNil)
				So(board.Title, ShouldEqual, "Dogfood")
				So(board.Entries[0].Username, ShouldEqual, "bob")
				So(board.Entries[1].Rank, ShouldEqual, 2)
			})
		})

		Convey("When a rank is requested", func() {
			entry, err := svc.Rank(ctx, "alice")
			So(err, ShouldBeNil)
			_, missing := svc.Rank(ctx, "zed")

			Convey("Then known players resolve and unknown ones do not", func() {
				So(entry.Rank, ShouldEqual, 2)
				So(entry.Total, ShouldEqual, 2)
				So(errors.Is(missing, service.ErrUnknownPlayer), ShouldBeTrue)
			})
		})

		Convey("When stats are requested", func() {
			stats := svc.GetStats()

			Convey("Then configuration is reported", func() {
				So(stats["githubLabel"], ShouldEqual, "dogfooded")
				So(stats["issueCredit"], ShouldEqual, 2)
				So(stats["publishCredits"], ShouldEqual, "posts")
				So(stats["githubPlayers"], ShouldEqual, 2)
				So(stats["feedConfigured"], ShouldEqual, false)
			})
		})
	})
}
