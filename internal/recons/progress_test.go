package recons

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdmops/console/internal/feed"
)

func progressTable() feed.Table {
	return feed.Table{
		Headers: []string{"Year", "Month", "C", "D", "OSDP", "PBI", "Status", "H", "Run at"},
		Rows: [][]any{
			{float64(2025), "May", "", "", "x", "", "Match", "", "Date(2025,4,3,10,0,0)"},
			{"2025", "may", "", "", "-", "n/a", "Not Match", "", "Date(2025,4,20,8,30,0)"},
			{float64(2025), "MAY", "", "", "", "y", "", "", ""},
			{float64(2025), "June", "", "", "x", "x", "Match", "", "Date(2025,5,1,0,0,0)"},
			{float64(2024), "May", "", "", "x", "x", "Match", "", "Date(2024,4,1,0,0,0)"},
			{"", "May", "", "", "x", "x", "Match", "", ""},
			{"total", "May", "", "", "x", "x", "Match", "", ""},
		},
	}
}

func TestComputeFiltersByYearAndMonth(t *testing.T) {
	records := ToRecords(progressTable(), time.UTC)

	p := Compute(records, Filter{Year: 2025, Month: "May"}, time.UTC)

	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 2, p.Eligible)
	assert.Equal(t, 2, p.Processed)
	assert.Equal(t, 1, p.Matched)
	assert.Equal(t, 1, p.Mismatches)
	assert.Equal(t, 67, p.PercentDone)
	require.NotNil(t, p.LastRunAt)
	assert.Equal(t, time.Date(2025, time.May, 20, 8, 30, 0, 0, time.UTC), *p.LastRunAt)
	assert.Equal(t, "5/20/2025, 8:30:00 AM", p.LastRunLabel)
}

func TestComputeAllMonthsExcludesOtherYearsAndNonNumericYears(t *testing.T) {
	records := ToRecords(progressTable(), time.UTC)

	p := Compute(records, Filter{Year: 2025}, time.UTC)
	assert.Equal(t, 4, p.Total)

	p = Compute(records, Filter{Year: 2024}, time.UTC)
	assert.Equal(t, 1, p.Total)
	assert.Equal(t, 100, p.PercentDone)
}

func TestComputeEmptyHasNoRun(t *testing.T) {
	p := Compute(nil, Filter{Year: 2025}, time.UTC)

	assert.Zero(t, p.Total)
	assert.Zero(t, p.PercentDone)
	assert.Nil(t, p.LastRunAt)
	assert.Equal(t, NoRunLabel, p.LastRunLabel)
}

func TestToRecordShortRow(t *testing.T) {
	r := ToRecord([]any{"2025", "May"}, time.UTC)

	require.NotNil(t, r.Year)
	assert.Equal(t, 2025, *r.Year)
	assert.False(t, r.HasBaseData)
	assert.Equal(t, StatusPending, r.Status)
	assert.Nil(t, r.Timestamp)
}

type stubReader struct {
	table feed.Table
	err   error
}

func (s stubReader) Read(ctx context.Context, sheetID, sheetName string) (feed.Table, time.Time, error) {
	return s.table, time.Now(), s.err
}

func TestServiceProgressDegrades(t *testing.T) {
	svc := NewService(stubReader{err: &feed.NetworkError{URL: "x", Err: errors.New("dial")}}, Config{SheetID: "id"}, nil)

	view := svc.Progress(context.Background(), Filter{Year: 2025})
	assert.Equal(t, "Failed to load", view.Error)
	assert.Zero(t, view.Total)
	assert.Equal(t, NoRunLabel, view.LastRunLabel)

	svc = NewService(stubReader{}, Config{}, nil)
	assert.Equal(t, "Progress sheet is not configured", svc.Progress(context.Background(), Filter{Year: 2025}).Error)
}

func TestServiceRecordsReturnsFilteredRows(t *testing.T) {
	svc := NewService(stubReader{table: progressTable()}, Config{SheetID: "id", Location: time.UTC}, nil)

	records, p, err := svc.Records(context.Background(), Filter{Year: 2025, Month: "June"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "June", records[0].MonthNormalized)
	assert.Equal(t, 1, p.Total)
}
