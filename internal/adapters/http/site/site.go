// Package site renders the HTML leaderboard and serves its static assets.
package site

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/pkg/logger"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Error constants
var (
	ErrRender = errors.New("leaderboard render failed")
)

//go:embed templates/index.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// BoardProvider supplies the board to render.
type BoardProvider interface {
	Leaderboard(ctx context.Context) (model.Board, error)
}

// Renderer executes the leaderboard template.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded template. Numbers are formatted for the
// given language.
func NewRenderer(tag language.Tag) (*Renderer, error) {
	p := message.NewPrinter(tag)
	funcs := template.FuncMap{
		"number":  func(n int) string { return p.Sprintf("%d", n) },
		"decimal": func(f float64) string { return p.Sprintf("%.1f", f) },
	}
	tmpl, err := template.New("index.html").Funcs(funcs).ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the board as HTML.
func (r *Renderer) Render(b model.Board) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

// RootHandler handles root path requests.
type RootHandler struct {
	boards   BoardProvider
	renderer *Renderer
	logger   logger.Logger
}

// NewRootHandler creates a new root handler.
func NewRootHandler(boards BoardProvider, renderer *Renderer, l logger.Logger) *RootHandler {
	return &RootHandler{boards: boards, renderer: renderer, logger: l}
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	b, err := h.boards.Leaderboard(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "failed to build leaderboard", logger.Error(err))
		http.Error(w, "leaderboard unavailable", http.StatusBadGateway)
		return
	}
	page, err := h.renderer.Render(b)
	if err != nil {
		h.logger.Error(r.Context(), "failed to render leaderboard", logger.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// StaticFS returns the embedded assets rooted at static/.
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return http.FS(staticFS)
	}
	return http.FS(sub)
}

// Register attaches GET / and /static/* to r.
func Register(_ context.Context, r chi.Router, boards BoardProvider) error {
	if r == nil {
		panic("router is nil")
	}
	renderer, err := NewRenderer(language.English)
	if err != nil {
		return err
	}
	h := NewRootHandler(boards, renderer, logger.Named("site"))
	r.Get("/", h.HandleRoot)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(StaticFS())))
	return nil
}
