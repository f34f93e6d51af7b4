package app

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/waa-mobile/waapos/internal/auth"
	"github.com/waa-mobile/waapos/internal/capital"
	"github.com/waa-mobile/waapos/internal/expenses"
	"github.com/waa-mobile/waapos/internal/inventory"
	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/observability"
	"github.com/waa-mobile/waapos/internal/parties"
	"github.com/waa-mobile/waapos/internal/platform/lock"
	"github.com/waa-mobile/waapos/internal/procurement"
	"github.com/waa-mobile/waapos/internal/reports"
	"github.com/waa-mobile/waapos/internal/sales"
	"github.com/waa-mobile/waapos/internal/shared"
	"github.com/waa-mobile/waapos/report"
)

// ServiceDeps carries the shared infrastructure handed to every service.
type ServiceDeps struct {
	Config  *Config
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Services is the wired domain layer shared by the server, the worker and posctl.
type Services struct {
	Auth        *auth.Service
	Inventory   *inventory.Service
	Parties     *parties.Service
	Ledger      *ledger.Service
	Sales       *sales.Service
	Procurement *procurement.Service
	Capital     *capital.Service
	Expenses    *expenses.Service
	Reports     *reports.Service
	Gotenberg   *report.Client
}

// NewServices builds the domain services on top of deps. Redis is optional; without it
// postings run unlocked and reports are computed on every request.
func NewServices(deps ServiceDeps) (*Services, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	audit := shared.NewAuditLogger(deps.Pool)
	idem := shared.NewIdempotencyStore(deps.Pool)

	partyService := parties.NewService(parties.NewRepository(deps.Pool), audit, logger, cfg.PhoneRegion)
	inventoryService := inventory.NewService(inventory.NewRepository(deps.Pool), audit, logger)
	ledgerService := ledger.NewService(ledger.NewRepository(deps.Pool), partyService, audit, logger)

	gotenberg := report.NewClient(cfg.GotenbergURL)
	renderer, err := report.NewReceiptRenderer(gotenberg, report.Shop{
		Name:    cfg.ShopName,
		Address: cfg.ShopAddress,
		Phone:   cfg.ShopPhone,
	})
	if err != nil {
		return nil, fmt.Errorf("app: receipt renderer: %w", err)
	}

	salesService := sales.NewService(sales.NewRepository(deps.Pool), partyService, audit, idem, logger).
		WithRenderer(renderer)
	if deps.Metrics != nil {
		salesService.WithMetrics(deps.Metrics)
	}
	if cfg.PostingLockEnabled && deps.Redis != nil {
		salesService.WithLocker(lock.New(deps.Redis, cfg.PostingLockTTL))
	}

	var reportCache *reports.Cache
	if deps.Redis != nil {
		reportCache = reports.NewCache(deps.Redis, cfg.ReportCacheTTL)
	}

	return &Services{
		Auth:        auth.NewService(auth.NewRepository(deps.Pool), logger),
		Inventory:   inventoryService,
		Parties:     partyService,
		Ledger:      ledgerService,
		Sales:       salesService,
		Procurement: procurement.NewService(procurement.NewRepository(deps.Pool), partyService, audit, idem, logger),
		Capital:     capital.NewService(capital.NewRepository(deps.Pool), audit, logger),
		Expenses:    expenses.NewService(expenses.NewRepository(deps.Pool), audit, logger),
		Reports:     reports.NewService(reports.NewRepository(deps.Pool), ledgerService, inventoryService, reportCache, logger),
		Gotenberg:   gotenberg,
	}, nil
}
