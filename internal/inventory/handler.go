package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/platform/httpx"
	"github.com/waa-mobile/waapos/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.listItems)
	r.Post("/items", h.upsertItem)
	r.Get("/items/{name}", h.getItem)
	r.Post("/adjustments", h.adjust)
	r.Get("/low-stock", h.lowStock)
}

type upsertItemRequest struct {
	Name            string          `json:"name" validate:"required,max=120"`
	Category        string          `json:"category" validate:"max=60"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	MinStock        *int64          `json:"min_stock"`
	OpeningQuantity int64           `json:"opening_quantity" validate:"gte=0"`
}

type adjustRequest struct {
	ItemName  string              `json:"item_name" validate:"required,max=120"`
	Delta     int64               `json:"delta" validate:"required"`
	UnitCost  decimal.NullDecimal `json:"unit_cost"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	Category  string              `json:"category" validate:"max=60"`
	Reason    string              `json:"reason" validate:"max=200"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lowOnly, _ := strconv.ParseBool(q.Get("low"))
	items, err := h.service.ListItems(r.Context(), ListFilter{Search: q.Get("q"), Category: q.Get("category"), LowOnly: lowOnly})
	if err != nil {
		httpx.Fail(w, r, h.logger, "list items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	name, err := httpx.PathParam(r, "name")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.GetItem(r.Context(), name)
	if err != nil {
		httpx.Fail(w, r, h.logger, "get item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) upsertItem(w http.ResponseWriter, r *http.Request) {
	var req upsertItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.UpsertItem(r.Context(), UpsertItemInput{
		Name:            req.Name,
		Category:        req.Category,
		UnitCost:        req.UnitCost,
		UnitPrice:       req.UnitPrice,
		MinStock:        req.MinStock,
		OpeningQuantity: req.OpeningQuantity,
		ActorID:         shared.ActorID(r.Context()),
	})
	if err != nil {
		httpx.Fail(w, r, h.logger, "upsert item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.Adjust(r.Context(), AdjustInput{
		ItemName:  req.ItemName,
		Delta:     req.Delta,
		UnitCost:  req.UnitCost,
		UnitPrice: req.UnitPrice,
		Category:  req.Category,
		Reason:    req.Reason,
		ActorID:   shared.ActorID(r.Context()),
	})
	if err != nil {
		httpx.Fail(w, r, h.logger, "adjust stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context())
	if err != nil {
		httpx.Fail(w, r, h.logger, "low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}
