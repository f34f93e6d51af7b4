package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/waa-mobile/waapos/internal/auth"
	"github.com/waa-mobile/waapos/internal/capital"
	"github.com/waa-mobile/waapos/internal/expenses"
	"github.com/waa-mobile/waapos/internal/inventory"
	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/observability"
	"github.com/waa-mobile/waapos/internal/parties"
	"github.com/waa-mobile/waapos/internal/platform/httpx"
	"github.com/waa-mobile/waapos/internal/procurement"
	"github.com/waa-mobile/waapos/internal/reports"
	"github.com/waa-mobile/waapos/internal/sales"
	"github.com/waa-mobile/waapos/internal/shared"
	"github.com/waa-mobile/waapos/jobs"
)

// ReportInvalidator drops cached reports after a write.
type ReportInvalidator interface {
	Invalidate(ctx context.Context)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	AuthHandler        *auth.Handler
	InventoryHandler   *inventory.Handler
	PartiesHandler     *parties.Handler
	SalesHandler       *sales.Handler
	ProcurementHandler *procurement.Handler
	LedgerHandler      *ledger.Handler
	CapitalHandler     *capital.Handler
	ExpensesHandler    *expenses.Handler
	ReportsHandler     *reports.Handler
	JobHandler         *jobs.Handler
	Reports            ReportInvalidator
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with POS defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(auth.RequireUser)
		if params.Reports != nil {
			api.Use(invalidateReports(params.Reports))
		}
		if params.AuthHandler != nil {
			api.Route("/users", params.AuthHandler.MountUserRoutes)
		}
		if params.InventoryHandler != nil {
			api.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.PartiesHandler != nil {
			api.Route("/parties", params.PartiesHandler.MountRoutes)
		}
		if params.SalesHandler != nil {
			params.SalesHandler.WithDeleteGuard(auth.RequireRole(auth.RoleAdmin))
			api.Route("/sales", params.SalesHandler.MountRoutes)
		}
		if params.ProcurementHandler != nil {
			api.Route("/purchases", params.ProcurementHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			api.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.CapitalHandler != nil {
			api.Route("/capital", params.CapitalHandler.MountRoutes)
		}
		if params.ExpensesHandler != nil {
			api.Route("/expenses", params.ExpensesHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			api.Route("/reports", params.ReportsHandler.MountRoutes)
		}
	})

	return r
}

// invalidateReports bumps the report cache after every successful write.
func invalidateReports(inv ReportInvalidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if status := ww.Status(); status == 0 || status < http.StatusBadRequest {
				inv.Invalidate(context.WithoutCancel(r.Context()))
			}
		})
	}
}
