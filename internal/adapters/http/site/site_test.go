package site

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/text/language"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fixedBoard struct {
	board model.Board
	err   error
}

func (f fixedBoard) Leaderboard(context.Context) (model.Board, error) {
	return f.board, f.err
}

func sampleBoard() model.Board {
	return model.Board{
		Title:   "Doggfodd Leaderboard",
		Players: 2,
		Entries: []model.LeaderboardEntry{
			{Rank: 1, Username: "bob", Posts: 1200, Issues: 1, Total: 1201},
			{Rank: 2, Username: "<alice>", Posts: 0, Issues: 2, Total: 2},
		},
		Totals:  model.Totals{Posts: 1200, Issues: 1.5},
		Skipped: 1,
	}
}

func TestRenderer(t *testing.T) {
	Convey("Given a renderer for English", t, func() {
		r, err := NewRenderer(language.English)
		So(err, ShouldBeNil)

		Convey("When a board is rendered", func() {
			page, err := r.Render(sampleBoard())
			So(err, ShouldBeNil)
			html := string(page)

			Convey("Then title, players and totals appear", func() {
				So(html, ShouldContainSubstring, "<title>Doggfodd Leaderboard</title>")
				So(html, ShouldContainSubstring, "2 players")
				So(html, ShouldContainSubstring, "1,200")
				So(html, ShouldContainSubstring, "<strong>1.5</strong>")
				So(html, ShouldContainSubstring, "1 unreadable records")
			})

			Convey("Then usernames are escaped", func() {
				So(html, ShouldContainSubstring, "&lt;alice&gt;")
				So(html, ShouldNotContainSubstring, "<alice>")
			})
		})

		Convey("When the board is empty", func() {
			page, err := r.Render(model.Board{Title: "Empty"})
			So(err, ShouldBeNil)

			Convey("Then a placeholder row is shown", func() {
				So(string(page), ShouldContainSubstring, "No scores yet.")
			})
		})
	})
}

func TestSiteHandler(t *testing.T) {
	Convey("Given a registered site", t, func() {
		ctx := context.Background()

		Convey("When the board builds", func() {
			r := chi.NewRouter()
			So(Register(ctx, r, fixedBoard{board: sampleBoard()}), ShouldBeNil)

			Convey("Then GET / serves HTML", func() {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(w.Body.String(), ShouldContainSubstring, "bob")
			})

			Convey("And the stylesheet is served", func() {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "border-collapse")
			})
		})

		Convey("When the store fails", func() {
			r := chi.NewRouter()
			So(Register(ctx, r, fixedBoard{err: errors.New("down")}), ShouldBeNil)

			Convey("Then GET / reports a bad gateway", func() {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
				So(w.Code, ShouldEqual, http.StatusBadGateway)
			})
		})
	})
}
