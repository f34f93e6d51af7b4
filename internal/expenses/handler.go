package expenses

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/platform/httpx"
	"github.com/waa-mobile/waapos/internal/shared"
)

// Handler exposes expense endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers routes under /expenses.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.record)
	r.Get("/", h.list)
}

type recordRequest struct {
	Date     string          `json:"date"`
	Category string          `json:"category" validate:"required,max=60"`
	Amount   decimal.Decimal `json:"amount"`
	Method   string          `json:"method" validate:"required"`
	Note     string          `json:"note" validate:"max=300"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	method, err := ledger.ParsePaymentMethod(req.Method)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.Record(r.Context(), RecordInput{
		Date:     date,
		Category: req.Category,
		Amount:   req.Amount,
		Method:   method,
		Note:     req.Note,
		ActorID:  shared.ActorID(r.Context()),
	})
	if err != nil {
		httpx.Fail(w, r, h.logger, "record expense", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, total, err := h.service.List(r.Context(), ListFilter{From: from, To: to, Category: r.URL.Query().Get("category")})
	if err != nil {
		httpx.Fail(w, r, h.logger, "list expenses", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"expenses": list, "total": total})
}
