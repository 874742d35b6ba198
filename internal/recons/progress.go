package recons

import (
	"math"
	"time"

	"github.com/mdmops/console/internal/feed"
)

// ToRecord maps a sheet row by fixed column position.
func ToRecord(row []any, loc *time.Location) Record {
	statusRaw := feed.CellString(feed.Cell(row, ColStatus))
	return Record{
		Year:            ParseYear(feed.Cell(row, ColYear)),
		Month:           feed.CellString(feed.Cell(row, ColMonth)),
		MonthNormalized: NormalizeMonth(feed.Cell(row, ColMonth)),
		HasBaseData:     IsMeaningful(feed.Cell(row, ColOSDP)) || IsMeaningful(feed.Cell(row, ColPowerBI)),
		Status:          NormalizeStatus(statusRaw),
		StatusRaw:       statusRaw,
		Timestamp:       ParseTimestamp(feed.Cell(row, ColTimestamp), loc),
	}
}

// ToRecords maps every row of table.
func ToRecords(table feed.Table, loc *time.Location) []Record {
	records := make([]Record, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = ToRecord(row, loc)
	}
	return records
}

// Matches reports whether r passes f. Records without a numeric year never
// match.
func (f Filter) Matches(r Record) bool {
	if r.Year == nil || *r.Year != f.Year {
		return false
	}
	return f.Month == "" || r.MonthNormalized == f.Month
}

// Select returns the records passing f, in order.
func Select(records []Record, f Filter) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Compute aggregates the records passing f. The percentage is taken over all
// filtered records, not only eligible ones.
func Compute(records []Record, f Filter, loc *time.Location) Progress {
	var p Progress
	for _, r := range Select(records, f) {
		p.Total++
		if r.HasBaseData {
			p.Eligible++
		}
		switch r.Status {
		case StatusMatch:
			p.Matched++
		case StatusMismatch:
			p.Mismatches++
		}
		if r.Status.Processed() {
			p.Processed++
		}
		if r.Timestamp != nil && (p.LastRunAt == nil || r.Timestamp.After(*p.LastRunAt)) {
			ts := *r.Timestamp
			p.LastRunAt = &ts
		}
	}
	if p.Total > 0 {
		p.PercentDone = int(math.Round(float64(p.Processed) / float64(p.Total) * 100))
	}
	p.LastRunLabel = NoRunLabel
	if p.LastRunAt != nil {
		if loc == nil {
			loc = time.Local
		}
		p.LastRunLabel = p.LastRunAt.In(loc).Format(LastRunLayout)
	}
	return p
}
