package parties

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/waa-mobile/waapos/internal/platform/httpx"
	"github.com/waa-mobile/waapos/internal/shared"
)

// Handler exposes party registration endpoints.
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

// MountRoutes registers routes under /parties.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{kind}", h.list)
	r.Post("/{kind}", h.register)
	r.Get("/{kind}/{name}", h.get)
	r.Patch("/{kind}/{name}", h.updateContact)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	party, err := h.service.Register(r.Context(), kind, req, shared.ActorID(r.Context()))
	if err != nil {
		httpx.Fail(w, r, h.logger, "register party", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, party)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	paging := shared.PageFromQuery(q)
	list, total, err := h.service.List(r.Context(), ListRequest{Kind: kind, Search: q.Get("q"), Limit: paging.PerPage, Offset: paging.Offset()})
	if err != nil {
		httpx.Fail(w, r, h.logger, "list parties", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"parties":    list,
		"pagination": paging.WithTotal(total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	name, err := httpx.PathParam(r, "name")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	party, err := h.service.Get(r.Context(), kind, name)
	if err != nil {
		httpx.Fail(w, r, h.logger, "get party", err)
		return
	}
	httpx.JSON(w, http.StatusOK, party)
}

func (h *Handler) updateContact(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateContactRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	name, err := httpx.PathParam(r, "name")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	party, err := h.service.UpdateContact(r.Context(), kind, name, req)
	if err != nil {
		httpx.Fail(w, r, h.logger, "update party", err)
		return
	}
	httpx.JSON(w, http.StatusOK, party)
}
