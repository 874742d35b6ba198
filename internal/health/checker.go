package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Checker probes a single target with a bounded timeout.
type Checker struct {
	client        *http.Client
	timeout       time.Duration
	degradedAfter time.Duration
	source        string
	now           func() time.Time
}

// NewChecker constructs a Checker. source labels who ran the check.
func NewChecker(timeout, degradedAfter time.Duration, source string) *Checker {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if degradedAfter <= 0 {
		degradedAfter = 2 * time.Second
	}
	return &Checker{
		client:        &http.Client{},
		timeout:       timeout,
		degradedAfter: degradedAfter,
		source:        source,
		now:           time.Now,
	}
}

// Check probes t. Any failure is reported through the result.
func (c *Checker) Check(ctx context.Context, t Target) Result {
	checkedAt := c.now()
	res := Result{
		CheckedAt:    checkedAt,
		Source:       c.source,
		UpdatedAtStr: checkedAt.UTC().Format(time.RFC3339Nano),
	}
	if t.URL == "" {
		res.Status = StatusUnknown
		res.Hint = hint("no URL configured")
		return res
	}
	url := t.URL
	res.URL = &url

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		res.Status = StatusDown
		res.Hint = hint("invalid URL")
		return res
	}
	start := c.now()
	resp, err := c.client.Do(req)
	latency := c.now().Sub(start).Milliseconds()
	if err != nil {
		res.Status = StatusDown
		if errors.Is(err, context.DeadlineExceeded) {
			res.Hint = hint(fmt.Sprintf("timeout after %s", c.timeout))
		} else {
			res.Hint = hint(err.Error())
		}
		return res
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	res.LatencyMs = &latency

	switch {
	case resp.StatusCode >= 500:
		res.Status = StatusDown
		res.Hint = hint(fmt.Sprintf("HTTP %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		res.Status = StatusDegraded
		res.Hint = hint(fmt.Sprintf("HTTP %d", resp.StatusCode))
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if time.Duration(latency)*time.Millisecond > c.degradedAfter {
			res.Status = StatusDegraded
			res.Hint = hint(fmt.Sprintf("slow response (%d ms)", latency))
		} else {
			res.Status = StatusUp
		}
	default:
		res.Status = StatusDegraded
		res.Hint = hint(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	return res
}

func hint(s string) *string {
	return &s
}
