// Package health probes configured services and records their status
// documents.
package health

import (
	"fmt"
	"strings"
	"time"
)

// Status of a probed service.
type Status string

const (
	StatusUp       Status = "UP"
	StatusDegraded Status = "DEGRADED"
	StatusDown     Status = "DOWN"
	StatusUnknown  Status = "Unknown"
)

// Collection holds one document per service.
const Collection = "health"

// Target is a named URL to probe.
type Target struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Result is stored as health/{name}.
type Result struct {
	Status       Status    `json:"status"`
	LatencyMs    *int64    `json:"latencyMs"`
	CheckedAt    time.Time `json:"checkedAt"`
	Hint         *string   `json:"hint"`
	Source       string    `json:"source"`
	URL          *string   `json:"url"`
	UpdatedAtStr string    `json:"updatedAtStr"`
}

// ServiceStatus pairs a service name with its last result.
type ServiceStatus struct {
	Name string `json:"name"`
	Result
}

// ParseTargets reads comma separated name=url pairs. A name without a URL
// is kept and reports Unknown.
func ParseTargets(raw string) ([]Target, error) {
	var targets []Target
	seen := make(map[string]struct{})
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, url, _ := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("health: target %q has no name", item)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("health: duplicate target %q", name)
		}
		seen[name] = struct{}{}
		targets = append(targets, Target{Name: name, URL: strings.TrimSpace(url)})
	}
	return targets, nil
}
