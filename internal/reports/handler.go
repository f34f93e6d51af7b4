package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/waa-mobile/waapos/internal/platform/httpx"
)

// Handler exposes report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes under /reports.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/profit", h.profit)
	r.Get("/cashbook", h.cashbook)
	r.Get("/dashboard", h.dashboard)
}

func (h *Handler) profit(w http.ResponseWriter, r *http.Request) {
	from, to, ok := window(w, r)
	if !ok {
		return
	}
	report, err := h.service.Profit(r.Context(), from, to)
	if err != nil {
		httpx.Fail(w, r, h.logger, "profit report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) cashbook(w http.ResponseWriter, r *http.Request) {
	from, to, ok := window(w, r)
	if !ok {
		return
	}
	book, err := h.service.Cashbook(r.Context(), from, to)
	if err != nil {
		httpx.Fail(w, r, h.logger, "cash book", err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		httpx.Fail(w, r, h.logger, "dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func window(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	from, err := httpx.ParseDate("from", q.Get("from"))
	if err != nil {
		httpx.RespondError(w, err)
		return time.Time{}, time.Time{}, false
	}
	to, err := httpx.ParseDate("to", q.Get("to"))
	if err != nil {
		httpx.RespondError(w, err)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
