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

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/waa-mobile/waapos/internal/app"
	jobmetrics "github.com/waa-mobile/waapos/internal/jobs"
	"github.com/waa-mobile/waapos/internal/observability"
	"github.com/waa-mobile/waapos/internal/platform/cache"
	"github.com/waa-mobile/waapos/internal/platform/db"
	"github.com/waa-mobile/waapos/internal/shared"
	"github.com/waa-mobile/waapos/jobs"
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

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.OTELServiceName + "-worker",
		Insecure:    !cfg.IsProduction(),
	})
	if err != nil {
		logger.Warn("init tracer", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown", slog.Any("error", err))
		}
	}()

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis unavailable, reports will not be cached", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	services, err := app.NewServices(app.ServiceDeps{
		Config: cfg,
		Pool:   pool,
		Redis:  redisClient,
		Logger: logger,
	})
	if err != nil {
		logger.Error("wire services", slog.Any("error", err))
		os.Exit(1)
	}

	handlers := &jobs.Jobs{
		Stock:    services.Inventory,
		Reports:  services.Reports,
		Receipts: services.Sales,
		Keys:     shared.NewIdempotencyStore(pool),
		Logger:   logger,
		Metrics:  jobmetrics.NewMetrics(prometheus.DefaultRegisterer),
	}

	lowStockTask, err := jobs.NewLowStockTask(time.Time{})
	if err != nil {
		logger.Error("build low stock task", slog.Any("error", err))
		os.Exit(1)
	}
	summaryTask, err := jobs.NewDailySummaryTask(time.Time{})
	if err != nil {
		logger.Error("build daily summary task", slog.Any("error", err))
		os.Exit(1)
	}
	sweepTask, err := jobs.NewIdempotencySweepTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build idempotency sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.Redis().Queue(),
		Logger:    logger,
		Handlers:  handlers.Handlers(),
		Cron: []jobs.CronRegistration{
			{Spec: cfg.LowStockCron, Task: lowStockTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.DailySummaryCron, Task: summaryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.IdempotencySweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
