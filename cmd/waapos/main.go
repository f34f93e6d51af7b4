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

	"github.com/waa-mobile/waapos/internal/app"
	"github.com/waa-mobile/waapos/internal/auth"
	"github.com/waa-mobile/waapos/internal/capital"
	"github.com/waa-mobile/waapos/internal/expenses"
	"github.com/waa-mobile/waapos/internal/inventory"
	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/observability"
	"github.com/waa-mobile/waapos/internal/parties"
	"github.com/waa-mobile/waapos/internal/platform/cache"
	"github.com/waa-mobile/waapos/internal/platform/db"
	"github.com/waa-mobile/waapos/internal/procurement"
	"github.com/waa-mobile/waapos/internal/reports"
	"github.com/waa-mobile/waapos/internal/sales"
	"github.com/waa-mobile/waapos/internal/shared"
	"github.com/waa-mobile/waapos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.OTELServiceName,
		Insecure:    !cfg.IsProduction(),
	})
	if err != nil {
		logger.Warn("init tracer", slog.Any("error", err))
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.DBAutoMigrate {
		applied, err := db.Migrate(ctx, dbpool, logger)
		if err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("schema up to date", slog.Int("applied", len(applied)))
	}

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	services, err := app.NewServices(app.ServiceDeps{
		Config:  cfg,
		Pool:    dbpool,
		Redis:   redisClient,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		logger.Error("wire services", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.AdminPassword != "" {
		created, err := services.Auth.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			logger.Error("bootstrap admin", slog.Any("error", err))
			os.Exit(1)
		}
		if created {
			logger.Info("default admin created", slog.String("username", cfg.AdminUsername))
		}
	}

	if err := services.Gotenberg.Ping(ctx); err != nil {
		logger.Warn("gotenberg unreachable, receipts will fail", slog.Any("error", err))
	}

	inspector := asynq.NewInspector(cfg.Redis().Queue())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "pos_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		AuthHandler:        auth.NewHandler(logger, services.Auth, sessionManager),
		InventoryHandler:   inventory.NewHandler(logger, services.Inventory),
		PartiesHandler:     parties.NewHandler(logger, services.Parties),
		SalesHandler:       sales.NewHandler(logger, services.Sales),
		ProcurementHandler: procurement.NewHandler(logger, services.Procurement),
		LedgerHandler:      ledger.NewHandler(logger, services.Ledger),
		CapitalHandler:     capital.NewHandler(logger, services.Capital),
		ExpensesHandler:    expenses.NewHandler(logger, services.Expenses),
		ReportsHandler:     reports.NewHandler(logger, services.Reports),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Reports:            services.Reports,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	if shutdownTracer != nil {
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown", slog.Any("error", err))
		}
	}
}

