package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/videgen/internal/api"
	"github.com/nikhilbhutani/videgen/internal/api/middleware"
	"github.com/nikhilbhutani/videgen/internal/audit"
	"github.com/nikhilbhutani/videgen/internal/bootstrap"
	"github.com/nikhilbhutani/videgen/internal/cache"
	"github.com/nikhilbhutani/videgen/internal/queue"
)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{}

	// Database and Redis are optional; without them the ledger and the
	// job endpoints answer 503.
	db, err := bootstrap.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		slog.Warn("database unavailable, running without event ledger", "error", err)
	}
	if db != nil {
		defer db.Close()
		deps.DB = db
		deps.Ledger = audit.NewService(db)
	}

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, running without job queue", "error", err)
	}
	if rdb != nil {
		defer rdb.Close()
		kv := cache.NewCache(rdb, "videgen:")
		deps.Redis = kv
		deps.Statuses = queue.NewStatusStore(kv, cfg.Queue.StatusTTL)

		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		deps.Enqueuer = qc
	}

	svc, err := bootstrap.NewServices(ctx, cfg, db)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	deps.Stages = svc.Pipeline
	deps.ArtifactRoot = svc.Store.Root()
	deps.ArtifactPrefix = svc.Store.URLPrefix()
	if cfg.Server.RateLimitRPS > 0 {
		deps.Limiter = middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
		go deps.Limiter.Cleanup(ctx.Done())
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting API server", "addr", cfg.Addr(), "degraded_video", svc.Pipeline.Degraded())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
