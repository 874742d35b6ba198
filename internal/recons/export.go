package recons

import (
	"fmt"
	"io"
	"time"

	"github.com/tealeg/xlsx/v2"
)

var recordHeaders = []string{"Year", "Month", "Has base data", "Status", "Status (raw)", "Timestamp"}

// WriteWorkbook renders a summary sheet and the filtered records.
func WriteWorkbook(w io.Writer, f Filter, records []Record, p Progress, loc *time.Location) error {
	file := xlsx.NewFile()

	summary, err := file.AddSheet("Summary")
	if err != nil {
		return fmt.Errorf("recons: export: %w", err)
	}
	month := f.Month
	if month == "" {
		month = "All"
	}
	addPair(summary, "Year", fmt.Sprint(f.Year))
	addPair(summary, "Month", month)
	addCount(summary, "Total", p.Total)
	addCount(summary, "Eligible", p.Eligible)
	addCount(summary, "Processed", p.Processed)
	addCount(summary, "Matched", p.Matched)
	addCount(summary, "Mismatches", p.Mismatches)
	addCount(summary, "Percent done", p.PercentDone)
	addPair(summary, "Last run", p.LastRunLabel)

	sheet, err := file.AddSheet("Records")
	if err != nil {
		return fmt.Errorf("recons: export: %w", err)
	}
	header := sheet.AddRow()
	for _, h := range recordHeaders {
		header.AddCell().SetString(h)
	}
	if loc == nil {
		loc = time.Local
	}
	for _, r := range records {
		row := sheet.AddRow()
		if r.Year != nil {
			row.AddCell().SetInt(*r.Year)
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(r.MonthNormalized)
		if r.HasBaseData {
			row.AddCell().SetString("yes")
		} else {
			row.AddCell().SetString("no")
		}
		row.AddCell().SetString(string(r.Status))
		row.AddCell().SetString(r.StatusRaw)
		if r.Timestamp != nil {
			row.AddCell().SetString(r.Timestamp.In(loc).Format(LastRunLayout))
		} else {
			row.AddCell().SetString("")
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("recons: export: %w", err)
	}
	return nil
}

func addPair(sheet *xlsx.Sheet, label, value string) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetString(value)
}

func addCount(sheet *xlsx.Sheet, label string, value int) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetInt(value)
}
