package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/leaderboard/internal/adapters/http/api"
	"github.com/okian/leaderboard/internal/adapters/http/site"
	"github.com/okian/leaderboard/internal/adapters/http/swagger"
	"github.com/okian/leaderboard/internal/adapters/repository"
	"github.com/okian/leaderboard/internal/adapters/repository/sqlite"
	"github.com/okian/leaderboard/internal/adapters/repository/wpcom"
	"github.com/okian/leaderboard/internal/adapters/statsfeed"
	app "github.com/okian/leaderboard/internal/app"
	"github.com/okian/leaderboard/internal/config"
	"github.com/okian/leaderboard/internal/domain/identity"
	"github.com/okian/leaderboard/pkg/logger"
	"github.com/okian/leaderboard/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// We collect our own system metrics instead.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		loggerInstance.Warn(ctx, "invalid log_format; keeping json", logger.String("log_format", cfg.LogFormat), logger.Error(err))
	}

	store, err := openStore(cfg)
	if err != nil {
		loggerInstance.Error(ctx, "failed to open store", logger.String("driver", cfg.StoreDriver), logger.Error(err))
		return
	}

	svc := newService(cfg, store)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	router, err := newRouter(ctx, cfg, svc)
	if err != nil {
		loggerInstance.Error(ctx, "failed to register routes", logger.Error(err))
		return
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// openStore builds the configured ledger backend behind the timeout guard.
func openStore(cfg *config.Config) (*repository.GuardedStore, error) {
	var (
		next repository.Store
		err  error
	)
	switch cfg.StoreDriver {
	case config.StoreDriverWPCOM:
		opts := []wpcom.Option{wpcom.WithHTTPClient(&http.Client{Timeout: cfg.StoreTimeout()})}
		if cfg.WPCOMBaseURL != "" {
			opts = append(opts, wpcom.WithBaseURL(cfg.WPCOMBaseURL))
		}
		next, err = wpcom.New(cfg.WPCOMToken, cfg.WPCOMSite, opts...)
	case config.StoreDriverSQLite:
		next, err = sqlite.Open(cfg.SQLitePath)
	case config.StoreDriverMemory:
		next = repository.NewMemoryStore()
	default:
		err = fmt.Errorf("%w: unknown store_driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}
	return repository.Guard(next,
		repository.WithTimeout(cfg.StoreTimeout()),
		repository.WithDriverName(cfg.StoreDriver),
	), nil
}

// newService wires configuration into the ledger service.
func newService(cfg *config.Config, store repository.Store) *app.Service {
	return app.New(
		app.WithLogger(logger.Get()),
		app.WithStore(store),
		app.WithDirectory(identity.NewDirectory(cfg.GitHubPlayers, cfg.BlogAuthors)),
		app.WithStatsFeed(statsfeed.New(cfg.StatsFeedURL, statsfeed.WithTimeout(cfg.StatsFeedTimeout()))),
		app.WithGitHubLabel(cfg.GitHubLabel),
		app.WithIssueCredit(cfg.IssueCredit),
		app.WithPublishCredits(app.CreditTarget(cfg.PublishEventCredits)),
		app.WithTitle(cfg.LeaderboardTitle),
		app.WithPageSize(cfg.StorePageSize),
	)
}

// newRouter mounts the API, the HTML board and the docs on one chi router.
func newRouter(ctx context.Context, cfg *config.Config, svc *app.Service) (chi.Router, error) {
	apiServer := api.NewServer(svc, svc,
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithWebhookSecret(cfg.GitHubWebhookSecret),
		api.WithCORSOrigins(cfg.CORSAllowedOrigins),
	)

	r := chi.NewRouter()
	r.Use(apiServer.Middlewares()...)

	apiServer.Register(ctx, r)
	if err := site.Register(ctx, r, svc); err != nil {
		return nil, err
	}
	swagger.Register(ctx, r)
	return r, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Average GC pause
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
