package sales

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

// IdempotencyHeader carries the client supplied posting key.
const IdempotencyHeader = "Idempotency-Key"

// Handler wires HTTP endpoints for invoices.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validator   *httpx.Validator
	deleteGuard []func(http.Handler) http.Handler
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// WithDeleteGuard wraps the delete-last route, typically with a role check.
func (h *Handler) WithDeleteGuard(mw ...func(http.Handler) http.Handler) *Handler {
	h.deleteGuard = append(h.deleteGuard, mw...)
	return h
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices", h.postInvoice)
	r.Get("/invoices", h.listInvoices)
	r.With(h.deleteGuard...).Delete("/invoices/last", h.deleteLast)
	r.Get("/invoices/{number}", h.getInvoice)
	r.Get("/invoices/{number}/receipt", h.receipt)
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

type postInvoiceRequest struct {
	Customer string          `json:"customer" validate:"required,max=200"`
	Lines    []CartLine      `json:"lines" validate:"dive"`
	Discount decimal.Decimal `json:"discount"`
	Payment  *paymentRequest `json:"payment"`
	Date     string          `json:"date"`
}

func (h *Handler) postInvoice(w http.ResponseWriter, r *http.Request) {
	var req postInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if len(req.Lines) == 0 {
		httpx.RespondError(w, ErrEmptyCart)
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
	input := PostInvoiceInput{
		CustomerName:   req.Customer,
		Cart:           Cart{Lines: req.Lines},
		Discount:       req.Discount,
		Date:           date,
		ActorID:        shared.ActorID(r.Context()),
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	}
	if req.Payment != nil && req.Payment.Amount.IsPositive() {
		method, err := ledger.ParsePaymentMethod(req.Payment.Method)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		input.Payment = &PaymentAtSale{Amount: req.Payment.Amount, Method: method}
	}
	snap, err := h.service.PostInvoice(r.Context(), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "post invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, snap)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
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
	list, err := h.service.ListInvoices(r.Context(), ListFilter{From: from, To: to, Customer: r.URL.Query().Get("customer"), Limit: limit})
	if err != nil {
		httpx.Fail(w, r, h.logger, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": list})
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	number, err := httpx.PathInt64("number", chi.URLParam(r, "number"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	snap, err := h.service.GetInvoice(r.Context(), number)
	if err != nil {
		httpx.Fail(w, r, h.logger, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) receipt(w http.ResponseWriter, r *http.Request) {
	number, err := httpx.PathInt64("number", chi.URLParam(r, "number"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.service.RenderReceipt(r.Context(), number)
	if err != nil {
		httpx.Fail(w, r, h.logger, "render receipt", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=invoice-"+strconv.FormatInt(number, 10)+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) deleteLast(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.DeleteLastInvoice(r.Context(), shared.ActorID(r.Context()))
	if err != nil {
		httpx.Fail(w, r, h.logger, "delete last invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}
