package recons

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMeaningful(t *testing.T) {
	for _, v := range []any{"", "  ", "-", "—", "N/A", "na", "null", "NULL", nil} {
		assert.False(t, IsMeaningful(v), "%#v", v)
	}
	for _, v := range []any{"0", "false", "x", float64(0), false} {
		assert.True(t, IsMeaningful(v), "%#v", v)
	}
}

func TestNormalizeStatusChecksMismatchFirst(t *testing.T) {
	cases := map[string]Status{
		"Not Match":      StatusMismatch,
		"MISMATCH":       StatusMismatch,
		"unmatched rows": StatusMismatch,
		"Failed":         StatusMismatch,
		"Match":          StatusMatch,
		"matched":        StatusMatch,
		"":               StatusPending,
		"-":              StatusPending,
		"n/a":            StatusPending,
		"queued":         StatusPending,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeStatus(raw), raw)
	}
}

func TestParseTimestampFeedToken(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)

	ts := ParseTimestamp("Date(2025,5,18,9,3,4)", loc)
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2025, time.June, 18, 9, 3, 4, 0, loc), *ts)

	ts = ParseTimestamp("Date(2024,0,31)", loc)
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2024, time.January, 31, 0, 0, 0, 0, loc), *ts)
}

func TestParseTimestampFeedTokenMillisAndSpacing(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)

	ts := ParseTimestamp("Date(2025,5,18,9,3,4,120)", loc)
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2025, time.June, 18, 9, 3, 4, 120*int(time.Millisecond), loc), *ts)

	ts = ParseTimestamp("Date(2025, 5, 18)", loc)
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2025, time.June, 18, 0, 0, 0, 0, loc), *ts)

	ts = ParseTimestamp("Date( 2025 , 5 , 18 , 9 , 3 , 4 , 0 )", loc)
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2025, time.June, 18, 9, 3, 4, 0, loc), *ts)

	assert.Nil(t, ParseTimestamp("Date(2025,5,18,9,3,4,120,7)", loc))
}

func TestParseTimestampStrings(t *testing.T) {
	loc := time.UTC
	cases := map[string]time.Time{
		"2025-06-18T09:03:04Z":   time.Date(2025, 6, 18, 9, 3, 4, 0, time.UTC),
		"2025-06-18 09:03:04":    time.Date(2025, 6, 18, 9, 3, 4, 0, time.UTC),
		"2025-06-18":             time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC),
		"6/18/2025, 9:03:04 AM":  time.Date(2025, 6, 18, 9, 3, 4, 0, time.UTC),
		"6/18/2025":              time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC),
		"June 18, 2025":          time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC),
	}
	for raw, want := range cases {
		ts := ParseTimestamp(raw, loc)
		require.NotNil(t, ts, raw)
		assert.True(t, want.Equal(*ts), raw)
	}
	assert.Nil(t, ParseTimestamp("yesterday", loc))
	assert.Nil(t, ParseTimestamp("", loc))
}

func TestNormalizeMonth(t *testing.T) {
	assert.Equal(t, "May", NormalizeMonth("may"))
	assert.Equal(t, "May", NormalizeMonth(" MAY "))
	assert.Equal(t, "May", NormalizeMonth(float64(5)))
	assert.Equal(t, "September", NormalizeMonth("sep"))
	assert.Equal(t, "Mei", NormalizeMonth("mei"))
	assert.Equal(t, "", NormalizeMonth(""))
}

func TestParseFilter(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	f, err := ParseFilter("", "", now)
	require.NoError(t, err)
	assert.Equal(t, Filter{Year: 2025}, f)

	for _, month := range []string{"5", "05", "may", "MAY", "May"} {
		f, err = ParseFilter("2024", month, now)
		require.NoError(t, err, month)
		assert.Equal(t, Filter{Year: 2024, Month: "May"}, f)
	}

	_, err = ParseFilter("20x4", "", now)
	assert.Error(t, err)
	_, err = ParseFilter("", "13", now)
	assert.Error(t, err)
	_, err = ParseFilter("", "Smarch", now)
	assert.Error(t, err)
}
