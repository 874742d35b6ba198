package health

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mdmops/console/internal/platform/httpx"
	"github.com/mdmops/console/internal/rbac"
	"github.com/mdmops/console/internal/shared"
)

// Handler exposes stored health results and on-demand checks.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers the system health routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermHealthView)).Get("/system/health", h.list)
	r.With(h.rbac.RequireAll(shared.PermHealthCheck)).Post("/system/health/check", h.check)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.service.Statuses(r.Context())
	if err != nil {
		h.logger.Error("list health", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Failed to load", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"services": statuses})
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.service.RunAll(r.Context())
	if err != nil {
		h.logger.Warn("health check results not fully stored", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"services": statuses})
}
