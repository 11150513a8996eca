// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/okian/leaderboard/internal/adapters/repository"
	"github.com/okian/leaderboard/internal/adapters/statsfeed"
	service "github.com/okian/leaderboard/internal/app"
	"github.com/okian/leaderboard/internal/domain/codec"
	"github.com/okian/leaderboard/pkg/logger"
	"github.com/okian/leaderboard/pkg/validate"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	WebhookDependencies
	ReconcileDependencies
	LeaderboardDependencies
	RankDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	webhookHandler     *WebhookHandler
	reconcileHandler   *ReconcileHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler

	corsOrigins []string
	logger      logger.Logger
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	maxLimit      int
	webhookSecret string
	corsOrigins   []string
	logger        logger.Logger
}

// WithMaxLimit caps GET /leaderboard?limit.
func WithMaxLimit(n int) ServerOption {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxLimit = n
		}
	}
}

// WithWebhookSecret enables X-Hub-Signature-256 verification on /github/issue.
func WithWebhookSecret(secret string) ServerOption {
	return func(c *serverConfig) { c.webhookSecret = secret }
}

// WithCORSOrigins sets the origins allowed to read the JSON board.
func WithCORSOrigins(origins []string) ServerOption {
	return func(c *serverConfig) {
		if len(origins) > 0 {
			c.corsOrigins = origins
		}
	}
}

// WithLogger sets the access and error logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	cfg := serverConfig{
		maxLimit:    defaultMaxLimit,
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Named("http")
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		webhookHandler:     NewWebhookHandler(deps, cfg.webhookSecret, cfg.logger),
		reconcileHandler:   NewReconcileHandler(deps, cfg.logger),
		leaderboardHandler: NewLeaderboardHandler(deps, cfg.maxLimit),
		rankHandler:        NewRankHandler(deps),
		corsOrigins:        cfg.corsOrigins,
		logger:             cfg.logger,
	}
}

// Middlewares returns the stack applied to every route.
func (s *Server) Middlewares() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		chimw.RealIP,
		chimw.RequestID,
		AccessLog(s.logger),
		chimw.Recoverer,
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Post("/github/issue", MetricsMiddleware(s.webhookHandler.HandleIssue, "github_issue"))
	r.Post("/webhook", MetricsMiddleware(s.webhookHandler.HandlePublish, "webhook"))

	r.Get("/update-post-counts", MetricsMiddleware(s.reconcileHandler.HandleFetch, "update_post_counts"))
	r.Post("/update-post-counts", MetricsMiddleware(s.reconcileHandler.HandlePost, "update_post_counts"))

	r.Group(func(r chi.Router) {
		r.Use(CORS(s.corsOrigins))
		r.Get("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
		r.Get("/rank/{username}", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err onto a status and writes it.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}

// statusFor translates domain and store errors to HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadSignature):
		return http.StatusUnauthorized, "bad_signature"
	case errors.Is(err, ErrBadRequest), errors.Is(err, validate.ErrInvalid):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrUnknownPlayer), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "store_timeout"
	case errors.Is(err, repository.ErrUnavailable), errors.Is(err, repository.ErrRejected):
		return http.StatusBadGateway, "store_unavailable"
	case errors.Is(err, statsfeed.ErrFeedUnavailable), errors.Is(err, statsfeed.ErrMalformedFeed):
		return http.StatusBadGateway, "feed_unavailable"
	case errors.Is(err, statsfeed.ErrNoFeedURL), errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, codec.ErrMalformedRecord):
		return http.StatusInternalServerError, "malformed_record"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
