package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mdmops/console/internal/platform/httpx"
	"github.com/mdmops/console/internal/shared"
)

// PermissionEditor reads and replaces role permission maps.
type PermissionEditor interface {
	PermissionsFor(ctx context.Context, role string) (PermissionMap, error)
	SetPermissions(ctx context.Context, role string, perms PermissionMap) error
}

// Handler serves navigation, self-permission and role administration routes.
type Handler struct {
	logger *slog.Logger
	editor PermissionEditor
	events *shared.AuthEvents
	rbac   Middleware
	nav    []Node
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, editor PermissionEditor, events *shared.AuthEvents, rbac Middleware, nav []Node) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if nav == nil {
		nav = DefaultNavigation()
	}
	return &Handler{logger: logger, editor: editor, events: events, rbac: rbac, nav: nav}
}

// MountRoutes registers the routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Authenticated)
		r.Get("/nav", h.navigation)
		r.Get("/me/permissions", h.myPermissions)
		r.Post("/me/permissions/check", h.check)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRolesEdit))
		r.Get("/admin/roles/{role}/permissions", h.rolePermissions)
		r.Put("/admin/roles/{role}/permissions", h.saveRolePermissions)
	})
}

func (h *Handler) navigation(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]any{"items": sess.FilterNav(h.nav)})
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, SessionFromContext(r.Context()).State())
}

type checkRequest struct {
	Keys []string `json:"keys"`
	Mode string   `json:"mode"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess := SessionFromContext(r.Context())
	var allowed bool
	switch strings.ToLower(req.Mode) {
	case "", "all":
		allowed = sess.CanAll(req.Keys...)
	case "any":
		allowed = sess.CanAny(req.Keys...)
	default:
		httpx.ValidationProblem(w, map[string]string{"mode": "must be any or all"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	perms, err := h.editor.PermissionsFor(r.Context(), role)
	if err != nil {
		h.logger.Error("load role permissions", slog.String("role", role), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Failed to load", "")
		return
	}
	httpx.JSON(w, http.StatusOK, RolePermissions{Permissions: perms})
}

func (h *Handler) saveRolePermissions(w http.ResponseWriter, r *http.Request) {
	role := strings.TrimSpace(chi.URLParam(r, "role"))
	var body RolePermissions
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if fields := validatePermissionKeys(body.Permissions); len(fields) > 0 {
		httpx.ValidationProblem(w, fields)
		return
	}
	if err := h.editor.SetPermissions(r.Context(), role, body.Permissions); err != nil {
		h.logger.Error("save role permissions", slog.String("role", role), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Failed to save", "permission set was not saved")
		return
	}
	h.events.Publish(shared.AuthEvent{Kind: shared.EventPermissionsChanged, Role: role})
	httpx.JSON(w, http.StatusOK, body)
}

// validatePermissionKeys rejects blank keys, blank segments and wildcards
// that are not a whole trailing segment.
func validatePermissionKeys(perms PermissionMap) map[string]string {
	fields := make(map[string]string)
	for key := range perms {
		if key == "*" {
			continue
		}
		segments := strings.Split(key, ".")
		for i, seg := range segments {
			if seg == "" || strings.TrimSpace(seg) != seg {
				fields[key] = "empty or padded segment"
				break
			}
			if strings.Contains(seg, "*") && (seg != "*" || i != len(segments)-1) {
				fields[key] = "wildcard must be the last segment"
				break
			}
		}
	}
	return fields
}
