package ledger

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/parties"
	"github.com/waa-mobile/waapos/internal/platform/httpx"
	"github.com/waa-mobile/waapos/internal/shared"
)

// Handler exposes balances, statements, payments and returns.
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

// MountRoutes registers routes under /ledger.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payments", h.recordPayment)
	r.Post("/returns", h.recordReturn)
	r.Get("/{kind}/balances", h.listBalances)
	r.Get("/{kind}/{name}/balance", h.balance)
	r.Get("/{kind}/{name}/statement", h.statement)
}

type paymentRequest struct {
	Kind           string          `json:"kind" validate:"required,oneof=customer supplier"`
	Party          string          `json:"party" validate:"required,max=200"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method" validate:"required"`
	Date           string          `json:"date"`
	InvoiceNumber  int64           `json:"invoice_number" validate:"gte=0"`
	PurchaseNumber int64           `json:"purchase_number" validate:"gte=0"`
	Note           string          `json:"note" validate:"max=300"`
}

type returnRequest struct {
	Customer string          `json:"customer" validate:"required,max=200"`
	Item     string          `json:"item" validate:"required,max=120"`
	Quantity int64           `json:"quantity" validate:"required,gt=0"`
	Amount   decimal.Decimal `json:"amount"`
	Reason   string          `json:"reason" validate:"max=300"`
	Date     string          `json:"date"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	kind, err := parties.ParseKind(req.Kind)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	method, err := ParsePaymentMethod(req.Method)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pay, err := h.service.RecordPayment(r.Context(), RecordPaymentInput{
		Kind:           kind,
		PartyName:      req.Party,
		Amount:         req.Amount,
		Method:         method,
		Date:           date,
		InvoiceNumber:  req.InvoiceNumber,
		PurchaseNumber: req.PurchaseNumber,
		Note:           req.Note,
		ActorID:        shared.ActorID(r.Context()),
	})
	if err != nil {
		httpx.Fail(w, r, h.logger, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pay)
}

func (h *Handler) recordReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
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
	ret, err := h.service.RecordReturn(r.Context(), RecordReturnInput{
		CustomerName: req.Customer,
		ItemName:     req.Item,
		Quantity:     req.Quantity,
		Amount:       req.Amount,
		Reason:       req.Reason,
		Date:         date,
		ActorID:      shared.ActorID(r.Context()),
	})
	if err != nil {
		httpx.Fail(w, r, h.logger, "record return", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ret)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	kind, err := parties.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	name, err := httpx.PathParam(r, "name")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bal, err := h.service.Balance(r.Context(), kind, name)
	if err != nil {
		httpx.Fail(w, r, h.logger, "party balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bal)
}

func (h *Handler) listBalances(w http.ResponseWriter, r *http.Request) {
	kind, err := parties.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.ListBalances(r.Context(), kind)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list balances", err)
		return
	}
	total := decimal.Zero
	for _, b := range list {
		total = total.Add(b.Balance)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"balances": list, "total": total})
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	kind, err := parties.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
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
	name, err := httpx.PathParam(r, "name")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stmt, err := h.service.Statement(r.Context(), kind, name, from, to)
	if err != nil {
		httpx.Fail(w, r, h.logger, "party statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stmt)
}
