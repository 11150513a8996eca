package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/okian/leaderboard/internal/adapters/repository"
	. "github.com/smartystreets/goconvey/convey"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen(t *testing.T) {
	Convey("Given an empty path", t, func() {
		_, err := Open("  ")

		Convey("Then Open refuses it", func() {
			So(errors.Is(err, repository.ErrInvalidArgument), ShouldBeTrue)
		})
	})

	Convey("Given a database that is opened twice", t, func() {
		path := filepath.Join(t.TempDir(), "ledger.db")
		first, err := Open(path)
		So(err, ShouldBeNil)
		_, err = first.Create(context.Background(), "alice", "alice", "1|0")
		So(err, ShouldBeNil)
		So(first.Close(), ShouldBeNil)

		second, err := Open(path)
		So(err, ShouldBeNil)
		defer func() { _ = second.Close() }()

		Convey("Then existing records survive", func() {
			rec, err := second.GetBySlug(context.Background(), "alice")
			So(err, ShouldBeNil)
			So(rec.Content, ShouldEqual, "1|0")
		})
	})
}

func TestStore(t *testing.T) {
	Convey("Given an opened store", t, func() {
		ctx := context.Background()
		store := openTestStore(t)

		Convey("When the slug is unknown", func() {
			_, err := store.GetBySlug(ctx, "bob")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a record is created", func() {
			rec, err := store.Create(ctx, "bob", "bob", "3|1")
			So(err, ShouldBeNil)

			Convey("Then a duplicate slug conflicts", func() {
				_, err := store.Create(ctx, "bob", "bob", "0|0")
				So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			})

			Convey("Then updates overwrite the content", func() {
				updated, err := store.Update(ctx, rec.ID, "7|1")
				So(err, ShouldBeNil)
				So(updated.ID, ShouldEqual, rec.ID)
				So(updated.Content, ShouldEqual, "7|1")
			})
		})

		Convey("When updating an unknown id", func() {
			_, err := store.Update(ctx, "42", "1|1")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When updating a malformed id", func() {
			_, err := store.Update(ctx, "x", "1|1")

			Convey("Then the argument is rejected", func() {
				So(errors.Is(err, repository.ErrInvalidArgument), ShouldBeTrue)
			})
		})

		Convey("When paging over 150 records with size 100", func() {
			for i := 0; i < 150; i++ {
				_, err := store.Create(ctx, "u", "u"+strconv.Itoa(i), "1|0")
				So(err, ShouldBeNil)
			}
			first, err := store.List(ctx, 100, 1)
			So(err, ShouldBeNil)
			second, err := store.List(ctx, 100, 2)
			So(err, ShouldBeNil)
			third, err := store.List(ctx, 100, 3)
			So(err, ShouldBeNil)

			Convey("Then pages hold 100, 50 and 0 records in insertion order", func() {
				So(first.Found, ShouldEqual, 150)
				So(len(first.Records), ShouldEqual, 100)
				So(len(second.Records), ShouldEqual, 50)
				So(third.Records, ShouldBeEmpty)
				So(first.Records[0].Slug, ShouldEqual, "u0")
				So(second.Records[49].Slug, ShouldEqual, "u149")
			})
		})

		Convey("When listing with an invalid page", func() {
			_, err := store.List(ctx, 0, 1)

			Convey("Then the argument is rejected", func() {
				So(errors.Is(err, repository.ErrInvalidArgument), ShouldBeTrue)
			})
		})
	})
}
