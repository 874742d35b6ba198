package feed

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Table is a parsed feed: column labels plus raw cell values by position.
type Table struct {
	Headers []string `json:"headers"`
	Rows    [][]any  `json:"rows"`
}

type envelope struct {
	Table *struct {
		Cols []struct {
			Label string `json:"label"`
		} `json:"cols"`
		Rows []struct {
			C []*struct {
				V any `json:"v"`
			} `json:"c"`
		} `json:"rows"`
	} `json:"table"`
}

// Parse extracts the table from a wrapped feed body. The payload is the
// substring between the first '{' and the last '}'.
func Parse(body []byte) (Table, error) {
	start := bytes.IndexByte(body, '{')
	end := bytes.LastIndexByte(body, '}')
	if start < 0 || end <= start {
		return Table{}, &ParseError{Reason: "no JSON object in response"}
	}

	var env envelope
	if err := json.Unmarshal(body[start:end+1], &env); err != nil {
		return Table{}, &ParseError{Reason: "invalid JSON", Err: err}
	}
	if env.Table == nil {
		return Table{}, &ParseError{Reason: "envelope has no table"}
	}

	headers := make([]string, len(env.Table.Cols))
	for i, col := range env.Table.Cols {
		headers[i] = strings.TrimSpace(col.Label)
	}
	rows := make([][]any, len(env.Table.Rows))
	for i, row := range env.Table.Rows {
		cells := make([]any, len(row.C))
		for j, cell := range row.C {
			if cell == nil || cell.V == nil {
				cells[j] = ""
				continue
			}
			cells[j] = cell.V
		}
		rows[i] = cells
	}
	return Table{Headers: headers, Rows: rows}, nil
}

// LocateColumn finds name by exact case-insensitive match, falling back to
// the first header containing it.
func (t Table) LocateColumn(name string) (int, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for i, h := range t.Headers {
		if strings.ToLower(h) == needle {
			return i, nil
		}
	}
	for i, h := range t.Headers {
		if strings.Contains(strings.ToLower(h), needle) {
			return i, nil
		}
	}
	return -1, &MissingColumnError{Column: name}
}

// Cell returns row[i], or "" when the row is shorter.
func Cell(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// CellString renders a raw cell value as text.
func CellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
