package procurement

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/platform/httpx"
	"github.com/waa-mobile/waapos/internal/shared"
)

// Handler manages purchase endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.recordPurchase)
	r.Get("/", h.listPurchases)
	r.Get("/{number}", h.getPurchase)
}

type purchaseRequest struct {
	Supplier        string      `json:"supplier" validate:"required,max=200"`
	Lines           []LineInput `json:"lines" validate:"required,min=1,dive"`
	Date            string      `json:"date"`
	Note            string      `json:"note" validate:"max=300"`
	CreateIfMissing bool        `json:"create_if_missing"`
	Payment         *struct {
		Amount decimal.Decimal `json:"amount"`
		Method string          `json:"method"`
	} `json:"payment"`
}

func (h *Handler) recordPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := RecordPurchaseInput{
		SupplierName:    req.Supplier,
		Lines:           req.Lines,
		Date:            date,
		Note:            req.Note,
		CreateIfMissing: req.CreateIfMissing,
		ActorID:         shared.ActorID(r.Context()),
		IdempotencyKey:  r.Header.Get("Idempotency-Key"),
	}
	if req.Payment != nil && req.Payment.Amount.IsPositive() {
		method, err := ledger.ParsePaymentMethod(req.Payment.Method)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		input.Payment = &PaymentAtPurchase{Amount: req.Payment.Amount, Method: method}
	}
	snap, err := h.service.RecordPurchase(r.Context(), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "record purchase", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, snap)
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
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
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.ListPurchases(r.Context(), ListFilter{From: from, To: to, Supplier: r.URL.Query().Get("supplier"), Limit: limit})
	if err != nil {
		httpx.Fail(w, r, h.logger, "list purchases", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": list})
}

func (h *Handler) getPurchase(w http.ResponseWriter, r *http.Request) {
	number, err := httpx.PathInt64("number", chi.URLParam(r, "number"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	snap, err := h.service.GetPurchase(r.Context(), number)
	if err != nil {
		httpx.Fail(w, r, h.logger, "get purchase", err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}
