package prefs

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mdmops/console/internal/platform/httpx"
	"github.com/mdmops/console/internal/shared"
)

// Handler serves preference reads and writes for the current session.
type Handler struct {
	validator   *validator.Validate
	checkTunnel TunnelCheck
}

// NewHandler builds a Handler. checkTunnel vets backend overrides; nil
// disables them.
func NewHandler(checkTunnel TunnelCheck) *Handler {
	return &Handler{validator: validator.New(), checkTunnel: checkTunnel}
}

// MountRoutes registers preference routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.put)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, Read(shared.SessionFromContext(r.Context())))
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Session unavailable", "")
		return
	}
	var u Update
	if err := httpx.DecodeJSON(r, &u); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(u); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		httpx.ValidationProblem(w, fields)
		return
	}
	if err := Apply(sess, u, h.checkTunnel); err != nil {
		httpx.ValidationProblem(w, map[string]string{"TunnelURL": "host not allowed"})
		return
	}
	httpx.JSON(w, http.StatusOK, Read(sess))
}
