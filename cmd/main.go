package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/couplepet/internal/adapters/http/api"
	"github.com/okian/couplepet/internal/adapters/http/site"
	"github.com/okian/couplepet/internal/adapters/http/swagger"
	"github.com/okian/couplepet/internal/adapters/repository"
	app "github.com/okian/couplepet/internal/app"
	"github.com/okian/couplepet/internal/config"
	"github.com/okian/couplepet/internal/domain/petstate"
	"github.com/okian/couplepet/pkg/logger"
	"github.com/okian/couplepet/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	runtimeMetricsInterval = 10 * time.Second
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "couplepet:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (.env -> defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	loc, err := cfg.LegacyLocation()
	if err != nil {
		return fmt.Errorf("legacy timezone: %w", err)
	}
	petstate.SetNaiveLocation(loc)

	store, err := repository.Open(ctx, cfg.StoreDriver,
		repository.WithDataFile(cfg.DataFile),
		repository.WithSQLitePath(cfg.SQLitePath),
		repository.WithPostgresDSN(cfg.PostgresDSN),
	)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithStore(store, cfg.StoreDriver),
		app.WithQueueSize(cfg.QueueSize),
		app.WithIdempotencySize(cfg.IdempotencySize),
		app.WithHistoryLimit(cfg.HistoryLimit),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(stopCtx, "service stop failed", logger.Error(err))
		}
	}()

	go startRuntimeMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.StoreDriver),
			logger.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return nil
}

// newHandler builds the full route table behind the request-ID middleware.
func newHandler(ctx context.Context, svc *app.Service) http.Handler {
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	swagger.Register(ctx, mux)
	site.Register(ctx, mux, version)
	return api.RequestIDMiddleware(mux)
}

// startRuntimeMetricsUpdater samples runtime and queue gauges until ctx ends.
func startRuntimeMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(runtimeMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateRuntimeMetrics(ctx, svc)
		}
	}
}

func updateRuntimeMetrics(ctx context.Context, svc *app.Service) {
	metrics.UpdateSystemGoroutineCount()
	stats := svc.GetStats(ctx)
	metrics.UpdateQueueSize(stats.QueueDepth)
	metrics.UpdateQueueCapacity(stats.QueueCapacity)
}
