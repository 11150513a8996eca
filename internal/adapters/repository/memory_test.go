package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/leaderboard/internal/adapters/repository"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryStore(t *testing.T) {
	Convey("Given an empty memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		Convey("When looking up an unknown slug", func() {
			_, err := store.GetBySlug(ctx, "alice")

			Convey("Then it reports ErrNotFound", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When creating a record", func() {
			rec, err := store.Create(ctx, "alice", "alice", "0|0")
			So(err, ShouldBeNil)

			Convey("Then it gets an id and can be fetched by slug", func() {
				So(rec.ID, ShouldNotBeEmpty)
				got, err := store.GetBySlug(ctx, "alice")
				So(err, ShouldBeNil)
				So(got, ShouldResemble, rec)
			})

			Convey("And a second create for the same slug conflicts", func() {
				_, err := store.Create(ctx, "alice", "alice", "0|0")
				So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			})

			Convey("And updates replace the content", func() {
				updated, err := store.Update(ctx, rec.ID, "0|2")
				So(err, ShouldBeNil)
				So(updated.Content, ShouldEqual, "0|2")
				got, _ := store.GetBySlug(ctx, "alice")
				So(got.Content, ShouldEqual, "0|2")
			})
		})

		Convey("When creating without a slug", func() {
			_, err := store.Create(ctx, "", "", "0|0")

			Convey("Then the argument is rejected", func() {
				So(errors.Is(err, repository.ErrInvalidArgument), ShouldBeTrue)
			})
		})

		Convey("When updating an unknown id", func() {
			_, err := store.Update(ctx, "nope", "1|1")

			Convey("Then it reports ErrNotFound", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When listing 150 records in pages of 100", func() {
			for i := 0; i < 150; i++ {
				_, err := store.Create(ctx, "", fmt.Sprintf("user-%03d", i), "1|1")
				So(err, ShouldBeNil)
			}
			first, err1 := store.List(ctx, 100, 1)
			second, err2 := store.List(ctx, 100, 2)
			third, err3 := store.List(ctx, 100, 3)

			Convey("Then pages follow creation order and report the found-count", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(err3, ShouldBeNil)
				So(len(first.Records), ShouldEqual, 100)
				So(len(second.Records), ShouldEqual, 50)
				So(len(third.Records), ShouldEqual, 0)
				So(first.Found, ShouldEqual, 150)
				So(first.Records[0].Slug, ShouldEqual, "user-000")
				So(second.Records[49].Slug, ShouldEqual, "user-149")
				So(store.Count(), ShouldEqual, 150)
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
