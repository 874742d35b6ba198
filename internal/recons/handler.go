package recons

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mdmops/console/internal/platform/httpx"
	"github.com/mdmops/console/internal/rbac"
	"github.com/mdmops/console/internal/shared"
)

const maxUploadBytes = 64 << 20

var uploadFields = []string{"osdp", "powerbi"}

// Handler serves progress, export and comparison routes.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	backend  *Backend
	override func(ctx context.Context) string
	rbac     rbac.Middleware
}

// NewHandler builds a Handler. override returns a per-session backend URL
// and may be nil.
func NewHandler(logger *slog.Logger, service *Service, backend *Backend, override func(ctx context.Context) string, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, backend: backend, override: override, rbac: rbac}
}

// MountRoutes registers the recons routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/recons", func(r chi.Router) {
		r.With(h.rbac.RequireAny(shared.PermReconsProgress, shared.PermReconsView)).Get("/progress", h.progress)
		r.With(h.rbac.RequireAll(shared.PermReconsExport)).Get("/progress.xlsx", h.progressWorkbook)
		r.With(h.rbac.RequireAll(shared.PermReconsUpload)).Post("/compare", h.compare)
		r.With(h.rbac.RequireAll(shared.PermReconsExport)).Get("/exports/{jobID}", h.export)
	})
}

func (h *Handler) filter(w http.ResponseWriter, r *http.Request) (Filter, bool) {
	q := r.URL.Query()
	f, err := ParseFilter(q.Get("year"), q.Get("month"), h.service.Now())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return Filter{}, false
	}
	return f, true
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.Progress(r.Context(), f))
}

func (h *Handler) progressWorkbook(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	records, progress, err := h.service.Records(r.Context(), f)
	if err != nil {
		h.logger.Error("load recons records", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Unavailable", "Failed to load")
		return
	}
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, f, records, progress, h.service.cfg.Location); err != nil {
		h.logger.Error("render recons workbook", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	name := fmt.Sprintf("recons-progress-%d", f.Year)
	if f.Month != "" {
		name += "-" + strings.ToLower(f.Month)
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) compare(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expected a multipart upload")
		return
	}

	uploads := make([]Upload, 0, len(uploadFields))
	fields := make(map[string]string)
	for _, field := range uploadFields {
		file, header, err := r.FormFile(field)
		if err != nil {
			fields[field] = "file is required"
			continue
		}
		defer func() {
			_ = file.Close()
		}()
		uploads = append(uploads, Upload{Field: field, Filename: header.Filename, Body: file})
	}
	if len(fields) > 0 {
		httpx.ValidationProblem(w, fields)
		return
	}

	backend, err := h.backendFor(r.Context())
	if err != nil {
		h.respondBackendError(w, "compare", err)
		return
	}
	result, err := backend.Compare(r.Context(), uploads)
	if err != nil {
		h.respondBackendError(w, "compare", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "csv" {
		httpx.ValidationProblem(w, map[string]string{"format": "must be xlsx or csv"})
		return
	}
	backend, err := h.backendFor(r.Context())
	if err != nil {
		h.respondBackendError(w, "export", err)
		return
	}
	blob, err := backend.Export(r.Context(), chi.URLParam(r, "jobID"), format)
	if err != nil {
		h.respondBackendError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", blob.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}

func (h *Handler) backendFor(ctx context.Context) (*Backend, error) {
	if h.override == nil {
		return h.backend, nil
	}
	return h.backend.WithBaseURL(h.override(ctx))
}

func (h *Handler) respondBackendError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrNoBackend) {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "reconciliation backend is not configured")
		return
	}
	if errors.Is(err, ErrTunnelNotAllowed) {
		h.logger.Warn("recons tunnel rejected", slog.String("op", op), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Tunnel Not Allowed", "the backend override of this session is not an allowed host")
		return
	}
	h.logger.Warn("recons backend", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}
