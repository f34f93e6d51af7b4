package capital

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/platform/httpx"
	"github.com/waa-mobile/waapos/internal/shared"
)

// Handler exposes the capital ledger.
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

// MountRoutes registers routes under /capital.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.record)
	r.Put("/partners/{partner}/opening", h.setOpening)
	r.Get("/partners/{partner}", h.net)
	r.Get("/summary", h.summary)
}

type entryRequest struct {
	Partner string          `json:"partner" validate:"required,max=120"`
	Kind    string          `json:"kind" validate:"required"`
	Amount  decimal.Decimal `json:"amount"`
	Remarks string          `json:"remarks" validate:"max=300"`
	Date    string          `json:"date"`
}

type openingRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	kind, err := ParseKind(req.Kind)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Record(r.Context(), RecordInput{
		Date:    date,
		Partner: req.Partner,
		Kind:    kind,
		Amount:  req.Amount,
		Remarks: req.Remarks,
		ActorID: shared.ActorID(r.Context()),
	})
	if err != nil {
		httpx.Fail(w, r, h.logger, "record capital", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) setOpening(w http.ResponseWriter, r *http.Request) {
	var req openingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	partner, err := httpx.PathParam(r, "partner")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pos, err := h.service.SetOpening(r.Context(), partner, req.Amount, shared.ActorID(r.Context()))
	if err != nil {
		httpx.Fail(w, r, h.logger, "set capital opening", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pos)
}

func (h *Handler) net(w http.ResponseWriter, r *http.Request) {
	partner, err := httpx.PathParam(r, "partner")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pos, err := h.service.Net(r.Context(), partner)
	if err != nil {
		httpx.Fail(w, r, h.logger, "partner capital", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pos)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.Summary(r.Context())
	if err != nil {
		httpx.Fail(w, r, h.logger, "capital summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}
