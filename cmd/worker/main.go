package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/thermaquote/thermaquote/internal/app"
	"github.com/thermaquote/thermaquote/internal/platform/cache"
	"github.com/thermaquote/thermaquote/internal/platform/db"
	"github.com/thermaquote/thermaquote/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	services := app.BuildServices(cfg, pool, redisClient, nil, logger)

	expiryJob := jobs.NewQuoteExpiryJob(services.Quotes, logger, nil)
	catalogJobs := jobs.NewCatalogJobs(services.Catalog, logger, nil)

	expiryTask, err := jobs.NewQuoteExpiryTask("scheduled")
	if err != nil {
		logger.Error("build expiry task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskQuoteExpirySweep, Handler: expiryJob.Handle},
			{Type: jobs.TaskCatalogWarm, Handler: catalogJobs.HandleWarm},
			{Type: jobs.TaskCatalogImport, Handler: catalogJobs.HandleImport},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.QuoteExpiryCron, Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.CatalogWarmCron, Task: jobs.NewCatalogWarmTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("expiry_cron", cfg.QuoteExpiryCron), slog.String("warm_cron", cfg.CatalogWarmCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
