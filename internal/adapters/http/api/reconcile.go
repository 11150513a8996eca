package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/leaderboard/internal/adapters/statsfeed"
	service "github.com/okian/leaderboard/internal/app"
	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/pkg/logger"
)

const maxFeedBytes = 8 << 20

// ReconcileDependencies defines the interface for post count reconciliation.
type ReconcileDependencies interface {
	Reconcile(ctx context.Context, counts []model.PostCount) (service.Outcome, error)
	ReconcileFromFeed(ctx context.Context) (service.Outcome, error)
}

// ReconcileHandler handles the bulk post count update.
type ReconcileHandler struct {
	deps   ReconcileDependencies
	logger logger.Logger
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(deps ReconcileDependencies, l logger.Logger) *ReconcileHandler {
	return &ReconcileHandler{deps: deps, logger: l}
}

// HandleFetch handles GET /update-post-counts by pulling the configured feed.
func (h *ReconcileHandler) HandleFetch(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.ReconcileFromFeed(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeText(w, http.StatusOK, out.Token())
}

// HandlePost handles POST /update-post-counts with the feed in the body.
func (h *ReconcileHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFeedBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: read body: %v", ErrBadRequest, err))
		return
	}
	counts, err := statsfeed.Parse(body)
	if err != nil {
		writeFailure(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	h.logger.Info(r.Context(), "reconciling posted feed", logger.Int("players", len(counts)))

	out, err := h.deps.Reconcile(r.Context(), counts)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeText(w, http.StatusOK, out.Token())
}
