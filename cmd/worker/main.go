package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/videgen/internal/bootstrap"
	"github.com/nikhilbhutani/videgen/internal/cache"
	"github.com/nikhilbhutani/videgen/internal/queue"
	"github.com/nikhilbhutani/videgen/internal/queue/workers"
	"github.com/nikhilbhutani/videgen/internal/webhook"
)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.Addr == "" {
		slog.Error("REDIS_ADDR is required by the worker")
		os.Exit(1)
	}

	ctx := context.Background()

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		slog.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	db, err := bootstrap.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		slog.Warn("database unavailable, running without event ledger", "error", err)
	}
	if db != nil {
		defer db.Close()
	}

	svc, err := bootstrap.NewServices(ctx, cfg, db)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	qc := queue.NewClient(cfg.Redis)
	defer qc.Close()

	statuses := queue.NewStatusStore(cache.NewCache(rdb, "videgen:"), cfg.Queue.StatusTTL)

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	pipelineWorker := workers.NewPipelineWorker(svc.Pipeline, statuses, qc)
	webhookWorker := workers.NewWebhookWorker(webhook.NewDispatcher(cfg.Webhook.Secret, cfg.Webhook.Timeout))

	registry.Register(queue.TypePipelineRun, asynq.HandlerFunc(pipelineWorker.ProcessTask))
	registry.Register(queue.TypeWebhookDeliver, asynq.HandlerFunc(webhookWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", cfg.Queue.Concurrency, "tasks", registry.Types())
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
