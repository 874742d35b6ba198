package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mdmops/console/internal/platform/httpx"
	"github.com/mdmops/console/internal/rbac"
	"github.com/mdmops/console/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermUsersView, shared.PermUsersEdit))
		r.Get("/", h.listUsers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermUsersEdit))
		r.Post("/", h.createUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRolesEdit))
		r.Put("/{actor}/role", h.setRole)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Failed to load", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in NewUser
	if !h.decode(w, r, &in) {
		return
	}
	user, err := h.service.CreateUser(r.Context(), in)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			httpx.ValidationProblem(w, map[string]string{"email": "already registered"})
			return
		}
		h.logger.Error("create user failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Failed to save", "user was not created")
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	var in RoleChange
	if !h.decode(w, r, &in) {
		return
	}
	actor := chi.URLParam(r, "actor")
	if err := h.service.SetRole(r.Context(), actor, in.Role); err != nil {
		h.logger.Error("set role failed", slog.String("actor", actor), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Failed to save", "role was not changed")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"actor": actor, "role": in.Role})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fields[fieldErr.Field()] = fieldErr.Tag()
			}
		}
		httpx.ValidationProblem(w, fields)
		return false
	}
	return true
}
