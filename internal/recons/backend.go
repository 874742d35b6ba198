package recons

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mdmops/console/internal/platform/httpx"
)

// ErrNoBackend is returned when no backend URL is configured.
var ErrNoBackend = errors.New("recons: backend url not configured")

// Upload is one file sent to the comparison endpoint.
type Upload struct {
	Field    string
	Filename string
	Body     io.Reader
}

// Blob is a downloaded export.
type Blob struct {
	ContentType string
	Filename    string
	Data        []byte
}

// Backend wraps the reconciliation service that diffs OSDP and Power BI
// extracts.
type Backend struct {
	baseURL      string
	httpClient   *http.Client
	tunnels      TunnelPolicy
	tunnelClient *http.Client
}

// NewBackend constructs a Backend. tunnels governs WithBaseURL overrides.
func NewBackend(baseURL string, timeout time.Duration, tunnels TunnelPolicy) *Backend {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Backend{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		tunnels:      tunnels,
		tunnelClient: newTunnelClient(timeout),
	}
}

// WithBaseURL returns a copy that targets baseURL, or b itself when empty.
// The override must pass the tunnel policy, and its connections are limited
// to public addresses.
func (b *Backend) WithBaseURL(baseURL string) (*Backend, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return b, nil
	}
	if err := b.tunnels.Check(baseURL); err != nil {
		return nil, err
	}
	return &Backend{baseURL: baseURL, httpClient: b.tunnelClient, tunnels: b.tunnels, tunnelClient: b.tunnelClient}, nil
}

// BaseURL returns the target URL.
func (b *Backend) BaseURL() string {
	return b.baseURL
}

// Ping checks that the backend answers.
func (b *Backend) Ping(ctx context.Context) error {
	if b.baseURL == "" {
		return ErrNoBackend
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: backend returned status %d", httpx.ErrUpstream, resp.StatusCode)
	}
	return nil
}

// Compare uploads the files as a multipart form and returns the backend's
// JSON result unchanged.
func (b *Backend) Compare(ctx context.Context, files []Upload) (json.RawMessage, error) {
	if b.baseURL == "" {
		return nil, ErrNoBackend
	}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range files {
		part, err := writer.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, f.Body); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/compare", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: compare failed with status %d", httpx.ErrUpstream, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: compare returned invalid JSON", httpx.ErrUpstream)
	}
	return raw, nil
}

// Export downloads the result of a comparison job as xlsx or csv.
func (b *Backend) Export(ctx context.Context, jobID, format string) (Blob, error) {
	if b.baseURL == "" {
		return Blob{}, ErrNoBackend
	}
	target := fmt.Sprintf("%s/exports/%s?%s", b.baseURL, url.PathEscape(jobID), url.Values{"format": {format}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Blob{}, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return Blob{}, fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusNotFound {
		return Blob{}, fmt.Errorf("%w: export %s", httpx.ErrNotFound, jobID)
	}
	if resp.StatusCode >= 400 {
		return Blob{}, fmt.Errorf("%w: export failed with status %d", httpx.ErrUpstream, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Blob{}, fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	}

	blob := Blob{ContentType: resp.Header.Get("Content-Type"), Data: data}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		blob.Filename = params["filename"]
	}
	if blob.Filename == "" {
		blob.Filename = fmt.Sprintf("recon-%s.%s", jobID, format)
	}
	if blob.ContentType == "" {
		blob.ContentType = "application/octet-stream"
	}
	return blob, nil
}
