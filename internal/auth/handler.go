package auth

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/waa-mobile/waapos/internal/platform/httpx"
	"github.com/waa-mobile/waapos/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	validator      *httpx.Validator
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		validator:      httpx.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.With(RequireUser).Get("/me", h.me)
}

// MountUserRoutes registers admin-only account management.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Use(RequireRole(RoleAdmin))
	r.Get("/", h.listUsers)
	r.Post("/", h.createUser)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	Role     Role   `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.Fail(w, r, h.logger, "login", err)
		return
	}
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		httpx.Fail(w, r, h.logger, "login", err)
		return
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10), string(user.Role))
	h.logger.Info("user logged in", slog.Int64("user", user.ID))
	httpx.JSON(w, http.StatusOK, sessionResponse{UserID: user.ID, Username: user.Username, Role: user.Role})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, sessionResponse{UserID: shared.ActorID(r.Context()), Role: Role(sess.Role())})
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=60"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=admin cashier"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.CreateUser(r.Context(), CreateUserInput{Username: req.Username, Password: req.Password, Role: Role(req.Role)})
	if err != nil {
		httpx.Fail(w, r, h.logger, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httpx.Fail(w, r, h.logger, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}
