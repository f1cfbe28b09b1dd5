package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ledgerview/ledgerview/internal/app"
	"github.com/ledgerview/ledgerview/internal/company"
	"github.com/ledgerview/ledgerview/internal/etl"
	jobmetrics "github.com/ledgerview/ledgerview/internal/jobs"
	"github.com/ledgerview/ledgerview/internal/ledger"
	"github.com/ledgerview/ledgerview/internal/platform/cache"
	"github.com/ledgerview/ledgerview/internal/platform/db"
	"github.com/ledgerview/ledgerview/jobs"
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

	pool, err := db.New(ctx, cfg.DatabaseOptions())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := cfg.RedisOptions().AsynqOpt()
	queue := jobs.NewClient(redisOpts, cfg.ETLMaxRetry)
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)
	companyService := company.NewService(company.NewRepository(pool))
	jobStore := etl.NewRedisStore(redisClient, cfg.ETLJobTTL)

	syncJob := etl.NewSyncJob(
		jobStore,
		companyService,
		etl.DefaultExtractors(&http.Client{Timeout: cfg.ETLFetchTimeout}),
		ledger.NewRepository(pool),
		logger,
		metrics,
	)
	syncJob.FetchTimeout = cfg.ETLFetchTimeout
	syncAllJob := etl.NewSyncAllJob(companyService, etl.NewService(jobStore, companyService, queue, logger), logger, metrics)

	var cron []jobs.CronRegistration
	if cfg.ETLSchedule != "" {
		cron = append(cron, jobs.CronRegistration{Spec: cfg.ETLSchedule, Task: jobs.NewETLSyncAllTask()})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskETLSync, Handler: syncJob.Handle},
			{Type: jobs.TaskETLSyncAll, Handler: syncAllJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency), slog.String("schedule", cfg.ETLSchedule))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
