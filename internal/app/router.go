package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mdmops/console/internal/auth"
	"github.com/mdmops/console/internal/emailtracker"
	"github.com/mdmops/console/internal/health"
	"github.com/mdmops/console/internal/home"
	"github.com/mdmops/console/internal/licenses"
	"github.com/mdmops/console/internal/observability"
	"github.com/mdmops/console/internal/prefs"
	"github.com/mdmops/console/internal/rbac"
	"github.com/mdmops/console/internal/recons"
	"github.com/mdmops/console/internal/shared"
	"github.com/mdmops/console/internal/users"
	"github.com/mdmops/console/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler         *auth.Handler
	RBACHandler         *rbac.Handler
	PrefsHandler        *prefs.Handler
	HomeHandler         *home.Handler
	EmailTrackerHandler *emailtracker.Handler
	ReconsHandler       *recons.Handler
	UsersHandler        *users.Handler
	LicensesHandler     *licenses.Handler
	HealthHandler       *health.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.RBACHandler != nil {
		params.RBACHandler.MountRoutes(r)
	}
	if params.PrefsHandler != nil {
		r.Route("/prefs", params.PrefsHandler.MountRoutes)
	}
	if params.HomeHandler != nil {
		r.Route("/home", params.HomeHandler.MountRoutes)
	}
	if params.EmailTrackerHandler != nil {
		params.EmailTrackerHandler.MountRoutes(r)
	}
	if params.ReconsHandler != nil {
		params.ReconsHandler.MountRoutes(r)
	}
	if params.UsersHandler != nil {
		r.Route("/admin/users", params.UsersHandler.MountRoutes)
	}
	if params.LicensesHandler != nil {
		r.Route("/admin/licenses", params.LicensesHandler.MountRoutes)
	}
	if params.HealthHandler != nil {
		params.HealthHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
