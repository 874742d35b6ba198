package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/mdmops/console/internal/app"
	"github.com/mdmops/console/internal/health"
	"github.com/mdmops/console/internal/platform/cache"
	"github.com/mdmops/console/internal/platform/db"
	"github.com/mdmops/console/internal/platform/docstore"
	"github.com/mdmops/console/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	loc, _ := cfg.Location()
	targets, _ := cfg.Targets()

	pool, err := db.New(ctx, cfg.PGDSN, 4)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	docs := docstore.New(pool)
	if err := docs.EnsureSchema(ctx); err != nil {
		logger.Error("ensure document schema", slog.Any("error", err))
		os.Exit(1)
	}

	healthService := health.NewService(
		health.NewChecker(cfg.HealthTimeout, cfg.HealthDegradedAfter, "worker"),
		docs, targets, nil, logger,
	)
	healthJob := jobs.NewHealthCheckJob(healthService, logger, nil)

	// The worker revalidates on its cron schedule, so the cache's own poll
	// loop stays off.
	workerCfg := *cfg
	workerCfg.FeedRefreshInterval = 0
	feedReader, _ := app.NewFeedReader(&workerCfg, redisClient, nil, logger)
	warmupJob := jobs.NewFeedsWarmupJob(feedReader, app.FeedTargets(cfg), logger, nil)
	warmupTask, err := jobs.NewFeedsWarmupTask(jobs.FeedsWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Location:  loc,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskHealthCheck, Handler: healthJob.Handle},
			{Type: jobs.TaskFeedsWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.Every(cfg.HealthInterval), Task: jobs.NewHealthCheckTask()},
			{Spec: jobs.Every(cfg.FeedRefreshInterval), Task: warmupTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
