package google

import (
	"fmt"
	"strings"

	"workdiary/internal/core"
	"workdiary/internal/source/memory"
)

type skippedRow struct {
	Row    int // 1-based sheet row
	Reason string
}

// parseEntries converts a values matrix (as returned by the Sheets API) into
// entries. A header row naming Title and Date columns is honoured; without one
// the columns are taken as Title, Content, Date.
func parseEntries(values [][]interface{}) ([]core.Entry, []skippedRow) {
	if len(values) == 0 {
		return nil, nil
	}
	colTitle, colContent, colDate := 0, 1, 2
	start := 0
	headers := toStrings(values[0])
	if t, d := indexOf(headers, "title"), indexOf(headers, "date"); t != -1 && d != -1 {
		colTitle, colDate = t, d
		colContent = indexOf(headers, "content")
		start = 1
	}

	var (
		out     []core.Entry
		skipped []skippedRow
	)
	for i := start; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		title := strings.TrimSpace(safeGet(row, colTitle))
		if title == "" {
			skipped = append(skipped, skippedRow{Row: i + 1, Reason: "empty title"})
			continue
		}
		d, err := memory.ParseDate(safeGet(row, colDate))
		if err != nil {
			skipped = append(skipped, skippedRow{Row: i + 1, Reason: err.Error()})
			continue
		}
		e := core.Entry{
			Title:   title,
			Content: strings.TrimSpace(safeGet(row, colContent)),
			Date:    d,
		}
		if err := e.Validate(); err != nil {
			skipped = append(skipped, skippedRow{Row: i + 1, Reason: err.Error()})
			continue
		}
		out = append(out, e)
	}
	return out, skipped
}

func toStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if v == nil {
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func safeGet(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
