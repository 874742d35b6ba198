// Package recons derives reconciliation progress from the tracking sheet and
// proxies the reconciliation backend.
package recons

import "time"

// Fixed column positions of the progress sheet (A, B, E, F, G, I).
const (
	ColYear      = 0
	ColMonth     = 1
	ColOSDP      = 4
	ColPowerBI   = 5
	ColStatus    = 6
	ColTimestamp = 8
)

// Status is a normalised reconciliation outcome.
type Status string

const (
	StatusMatch    Status = "match"
	StatusMismatch Status = "mismatch"
	StatusPending  Status = "pending"
)

// Processed reports whether the row has been reconciled.
func (s Status) Processed() bool {
	return s == StatusMatch || s == StatusMismatch
}

// Record is one sheet row mapped to typed fields.
type Record struct {
	Year            *int       `json:"year"`
	Month           string     `json:"month"`
	MonthNormalized string     `json:"monthNormalized"`
	HasBaseData     bool       `json:"hasBaseData"`
	Status          Status     `json:"status"`
	StatusRaw       string     `json:"statusRaw"`
	Timestamp       *time.Time `json:"timestamp"`
}

// Filter selects records by year and, optionally, month.
type Filter struct {
	Year int `json:"year"`
	// Month is a full English month name, empty for all months.
	Month string `json:"month,omitempty"`
}

// Progress aggregates a filtered record set.
type Progress struct {
	Total        int        `json:"total"`
	Eligible     int        `json:"eligible"`
	Processed    int        `json:"processed"`
	Matched      int        `json:"matched"`
	Mismatches   int        `json:"mismatches"`
	PercentDone  int        `json:"percentDone"`
	LastRunAt    *time.Time `json:"lastRunAt"`
	LastRunLabel string     `json:"lastRunLabel"`
}

// NoRunLabel is shown when no record carries a timestamp.
const NoRunLabel = "—"

// LastRunLayout renders LastRunAt in the en-US locale style.
const LastRunLayout = "1/2/2006, 3:04:05 PM"
