package emailtracker

import "github.com/mdmops/console/internal/feed"

const statusColumn = "status"

// Summarize classifies every row of table by its status column.
func Summarize(table feed.Table) (Summary, error) {
	col, err := table.LocateColumn(statusColumn)
	if err != nil {
		return Summary{}, err
	}
	var counts Counts
	for _, row := range table.Rows {
		counts.Add(Normalize(feed.CellString(feed.Cell(row, col))))
	}
	return Summary{Counts: counts, PercentComplete: PercentComplete(counts)}, nil
}
