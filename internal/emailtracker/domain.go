// Package emailtracker summarises the email tracking sheet.
package emailtracker

import (
	"math"
	"strings"
)

// Status is a normalised row status.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "inProgress"
	StatusComplete   Status = "complete"
)

// Counts tallies rows per status.
type Counts struct {
	New        int `json:"new"`
	InProgress int `json:"inProgress"`
	Complete   int `json:"complete"`
	Total      int `json:"total"`
}

// Summary is derived from one feed snapshot.
type Summary struct {
	Counts          Counts `json:"counts"`
	PercentComplete int    `json:"percentComplete"`
}

type statusRule struct {
	match  func(s string) bool
	status Status
}

// statusRules are evaluated in order against the trimmed, lowercased cell.
// Progress is checked before completion.
var statusRules = []statusRule{
	{match: func(s string) bool { return s == "" }, status: StatusNew},
	{match: func(s string) bool {
		return strings.Contains(s, "progress") || s == "in_progress" || s == "inprogress"
	}, status: StatusInProgress},
	{match: func(s string) bool {
		return strings.Contains(s, "complete") || s == "done" || s == "completed"
	}, status: StatusComplete},
}

// Normalize classifies a raw status cell.
func Normalize(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, rule := range statusRules {
		if rule.match(s) {
			return rule.status
		}
	}
	return StatusNew
}

// Add counts one status.
func (c *Counts) Add(s Status) {
	switch s {
	case StatusInProgress:
		c.InProgress++
	case StatusComplete:
		c.Complete++
	default:
		c.New++
	}
	c.Total++
}

// PercentComplete rounds complete/total to a whole percent, 0 when empty.
func PercentComplete(c Counts) int {
	if c.Total == 0 {
		return 0
	}
	return int(math.Round(float64(c.Complete) / float64(c.Total) * 100))
}
