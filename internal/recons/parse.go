package recons

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mdmops/console/internal/feed"
)

var placeholders = map[string]struct{}{
	"":     {},
	"-":    {},
	"—":    {},
	"n/a":  {},
	"na":   {},
	"null": {},
}

// IsMeaningful reports whether a cell holds real data rather than a blank or
// placeholder.
func IsMeaningful(v any) bool {
	_, placeholder := placeholders[strings.ToLower(strings.TrimSpace(feed.CellString(v)))]
	return !placeholder
}

type statusRule struct {
	match  func(s string) bool
	status Status
}

var mismatchTerms = []string{"mismatch", "not match", "unmatch", "fail"}

// statusRules run in order on the trimmed, lowercased cell. Mismatch terms
// contain "match" so they must be tested first.
var statusRules = []statusRule{
	{match: func(s string) bool { _, ok := placeholders[s]; return ok }, status: StatusPending},
	{match: func(s string) bool {
		for _, term := range mismatchTerms {
			if strings.Contains(s, term) {
				return true
			}
		}
		return false
	}, status: StatusMismatch},
	{match: func(s string) bool { return strings.Contains(s, "match") }, status: StatusMatch},
}

// NormalizeStatus classifies a raw status cell.
func NormalizeStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, rule := range statusRules {
		if rule.match(s) {
			return rule.status
		}
	}
	return StatusPending
}

var feedDate = regexp.MustCompile(`^Date\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*(?:,\s*(\d+)\s*)?(?:,\s*(\d+)\s*)?(?:,\s*(\d+)\s*)?(?:,\s*(\d+)\s*)?\)$`)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"1/2/2006, 3:04:05 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
	"1/2/2006",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	time.RFC1123,
}

// ParseTimestamp reads a feed date token such as Date(2025,5,18,9,3,4,120),
// whose month is zero based and whose last field is milliseconds, or a common ISO or locale string. Values that
// parse as neither return nil.
func ParseTimestamp(v any, loc *time.Location) *time.Time {
	raw := strings.TrimSpace(feed.CellString(v))
	if raw == "" {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	if m := feedDate.FindStringSubmatch(raw); m != nil {
		parts := make([]int, 7)
		for i := range parts {
			if m[i+1] == "" {
				continue
			}
			n, err := strconv.Atoi(m[i+1])
			if err != nil {
				return nil
			}
			parts[i] = n
		}
		ts := time.Date(parts[0], time.Month(parts[1]+1), parts[2], parts[3], parts[4], parts[5], parts[6]*int(time.Millisecond), loc)
		return &ts
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return &ts
		}
	}
	return nil
}

// ParseYear reads a numeric year cell.
func ParseYear(v any) *int {
	raw := strings.TrimSpace(feed.CellString(v))
	year, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &year
}

var titleCaser = cases.Title(language.English)

// NormalizeMonth maps a month cell to its full English name. Numbers 1-12
// map to names; anything else is returned title-cased.
func NormalizeMonth(v any) string {
	raw := strings.TrimSpace(feed.CellString(v))
	if raw == "" {
		return ""
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n).String()
		}
		return raw
	}
	lower := strings.ToLower(raw)
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if lower == name || (len(lower) == 3 && strings.HasPrefix(name, lower)) {
			return m.String()
		}
	}
	return titleCaser.String(raw)
}

// ParseMonthFilter accepts 1-12, a numeric string or a full month name in any
// case. Empty means all months.
func ParseMonthFilter(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 1 || n > 12 {
			return "", fmt.Errorf("month %d out of range", n)
		}
		return time.Month(n).String(), nil
	}
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(raw, m.String()) {
			return m.String(), nil
		}
	}
	return "", fmt.Errorf("unknown month %q", raw)
}

// ParseFilter builds a Filter from query values. The year defaults to the
// current year of now.
func ParseFilter(year, month string, now time.Time) (Filter, error) {
	f := Filter{Year: now.Year()}
	if y := strings.TrimSpace(year); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid year %q", year)
		}
		f.Year = n
	}
	m, err := ParseMonthFilter(month)
	if err != nil {
		return Filter{}, err
	}
	f.Month = m
	return f, nil
}
