package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mdmops/console/internal/platform/httpx"
	"github.com/mdmops/console/internal/shared"
)

type sessionContextKey struct{}

// ContextWithSession stores the permission session in ctx.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the permission session stored by the middleware.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// Middleware wires permission checks into HTTP handlers.
type Middleware struct {
	Sessions *SessionStore
	Logger   *slog.Logger
}

// Authenticated resolves the permission session of the signed-in actor and
// stores it in the request context. Anonymous requests get 401.
func (m Middleware) Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := m.resolve(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
	})
}

// RequireAny ensures the current actor holds at least one of perms.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.require(AnyOf(perms...))
}

// RequireAll ensures the current actor holds every one of perms.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.require(AllOf(perms...))
}

func (m Middleware) require(rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if sess == nil {
				var ok bool
				if sess, ok = m.resolve(w, r); !ok {
					return
				}
				r = r.WithContext(ContextWithSession(r.Context(), sess))
			}
			if !allowed(rule, sess) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) resolve(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	actor := shared.ActorFromContext(r.Context())
	if actor == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
		return nil, false
	}
	sess, err := m.Sessions.Resolve(r.Context(), actor)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Warn("resolve permission session", slog.String("actor", actor), slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "permissions still loading")
		return nil, false
	}
	return sess, true
}
