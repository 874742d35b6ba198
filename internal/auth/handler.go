package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/mdmops/console/internal/platform/httpx"
	"github.com/mdmops/console/internal/rbac"
	"github.com/mdmops/console/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	events         *shared.AuthEvents
	rbac           rbac.Middleware
	validator      *validator.Validate
	attempts       int
}

// NewHandler constructs a Handler instance. attempts caps sign-in attempts
// per client IP per minute.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, events *shared.AuthEvents, rbac rbac.Middleware, attempts int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if attempts <= 0 {
		attempts = 5
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		events:         events,
		rbac:           rbac,
		validator:      validator.New(),
		attempts:       attempts,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(h.attempts, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeAuthError(w, http.StatusTooManyRequests, ErrTooManyAttempts)
		}),
	)
	r.Get("/csrf", h.csrf)
	r.With(limiter).Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.With(h.rbac.Authenticated).Get("/me", h.me)
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	Actor string `json:"actor"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func writeAuthError(w http.ResponseWriter, status int, err *Error) {
	httpx.JSON(w, status, map[string]any{
		"title":  "Sign-in failed",
		"status": status,
		"code":   err.Code,
		"detail": err.Message,
	})
}

func (h *Handler) csrf(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrfManager.Token(shared.SessionFromContext(r.Context()))
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fields[fieldErr.Field()] = fieldErr.Tag()
			}
		}
		httpx.ValidationProblem(w, fields)
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		var authErr *Error
		if errors.As(err, &authErr) {
			writeAuthError(w, http.StatusUnauthorized, authErr)
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.sessionManager.Renew(r.Context(), sess)
	sess.SetActor(user.ID)
	sess.Delete(shared.CSRFSessionKey)
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	h.events.Publish(shared.AuthEvent{Kind: shared.EventSignedIn, Actor: user.ID})
	httpx.JSON(w, http.StatusOK, userResponse{Actor: user.ID, Email: user.Email, Name: user.Name})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if actor := sess.Actor(); actor != "" {
			h.events.Publish(shared.AuthEvent{Kind: shared.EventSignedOut, Actor: actor})
		}
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	perms := rbac.SessionFromContext(r.Context()).State()
	resp := map[string]any{"actor": perms.Actor, "role": perms.Role, "permissions": perms.Permissions}
	user, err := h.service.User(r.Context(), perms.Actor)
	switch {
	case err == nil:
		resp["email"] = user.Email
		resp["name"] = user.Name
	case errors.Is(err, ErrNotFound):
	default:
		h.logger.Warn("load signed-in user", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, resp)
}
