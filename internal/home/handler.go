// Package home assembles the landing dashboard of the signed-in actor.
package home

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/mdmops/console/internal/emailtracker"
	"github.com/mdmops/console/internal/platform/httpx"
	"github.com/mdmops/console/internal/rbac"
	"github.com/mdmops/console/internal/recons"
	"github.com/mdmops/console/internal/shared"
)

// TrackerSource yields email tracker summaries.
type TrackerSource interface {
	Summary(ctx context.Context, sheetName string) emailtracker.View
}

// ProgressSource yields reconciliation progress.
type ProgressSource interface {
	Now() time.Time
	Progress(ctx context.Context, f recons.Filter) recons.View
}

// Dashboard is the home payload. Sections the actor may not see are omitted.
type Dashboard struct {
	Actor        string             `json:"actor"`
	Role         string             `json:"role"`
	EmailTracker *emailtracker.View `json:"emailTracker,omitempty"`
	Recons       *recons.View       `json:"recons,omitempty"`
}

// Handler serves GET /home.
type Handler struct {
	tracker  TrackerSource
	progress ProgressSource
	rbac     rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(tracker TrackerSource, progress ProgressSource, rbac rbac.Middleware) *Handler {
	return &Handler{tracker: tracker, progress: progress, rbac: rbac}
}

// MountRoutes registers the dashboard route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermHomeView)).Get("/", h.dashboard)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.Build(r.Context(), rbac.SessionFromContext(r.Context())))
}

// Build gathers every section sess may see concurrently. Each section
// carries its own error and never fails the others.
func (h *Handler) Build(ctx context.Context, sess *rbac.Session) Dashboard {
	state := sess.State()
	out := Dashboard{Actor: state.Actor, Role: state.Role}

	var g errgroup.Group
	if h.tracker != nil && sess.Can(shared.PermEmailTrackerView) {
		g.Go(func() error {
			view := h.tracker.Summary(ctx, "")
			out.EmailTracker = &view
			return nil
		})
	}
	if h.progress != nil && sess.CanAny(shared.PermReconsProgress, shared.PermReconsView) {
		g.Go(func() error {
			now := h.progress.Now()
			view := h.progress.Progress(ctx, recons.Filter{Year: now.Year(), Month: now.Month().String()})
			out.Recons = &view
			return nil
		})
	}
	_ = g.Wait()
	return out
}
