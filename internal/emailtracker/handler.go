package emailtracker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mdmops/console/internal/platform/httpx"
	"github.com/mdmops/console/internal/rbac"
	"github.com/mdmops/console/internal/shared"
)

// Handler exposes the tracker summary.
type Handler struct {
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{service: service, rbac: rbac}
}

// MountRoutes registers GET /email-tracker.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermEmailTrackerView)).Get("/email-tracker", h.summary)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Summary(r.Context(), r.URL.Query().Get("sheetName")))
}
