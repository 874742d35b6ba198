// Package feed reads published spreadsheets through their tabular JSON
// export.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultHost is the public spreadsheet host.
const DefaultHost = "https://docs.google.com/spreadsheets"

// maxBodyBytes caps how much of a feed response is read.
const maxBodyBytes = 16 << 20

// ClientConfig tunes a Client.
type ClientConfig struct {
	Host          string
	Timeout       time.Duration
	RatePerSecond float64
}

// Client fetches feeds. It never retries; callers decide how to recover.
type Client struct {
	host       string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient constructs a Client.
func NewClient(cfg ClientConfig) *Client {
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = DefaultHost
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Client{
		host:       host,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// URL builds the export URL for sheetID, optionally scoped to a tab.
func (c *Client) URL(sheetID, sheetName string) string {
	query := url.Values{}
	query.Set("tqx", "out:json")
	if sheetName != "" {
		query.Set("sheet", sheetName)
	}
	return fmt.Sprintf("%s/d/%s/gviz/tq?%s", c.host, url.PathEscape(sheetID), query.Encode())
}

// Fetch downloads and parses a feed.
func (c *Client) Fetch(ctx context.Context, sheetID, sheetName string) (Table, error) {
	target := c.URL(sheetID, sheetName)
	if err := c.limiter.Wait(ctx); err != nil {
		return Table{}, &NetworkError{URL: target, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Table{}, &NetworkError{URL: target, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Table{}, &NetworkError{URL: target, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Table{}, &NetworkError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Table{}, &NetworkError{URL: target, Err: err}
	}
	return Parse(body)
}
