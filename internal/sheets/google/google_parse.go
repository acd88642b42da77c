package google

import (
	"fmt"
	"strconv"
	"strings"

	"financify/internal/importer"
)

// parseRecords converts a values matrix (as returned by the Sheets API)
// into import records. An empty range yields no records.
func parseRecords(values [][]interface{}) ([]importer.Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	header := toStrings(values[0])
	rows := make([][]string, 0, len(values)-1)
	for _, v := range values[1:] {
		rows = append(rows, toStrings(v))
	}
	records, err := importer.FromRows(header, rows)
	if err != nil {
		return nil, fmt.Errorf("unexpected import header %v: %w", header, err)
	}
	return records, nil
}

// toStrings renders cells as text. Numbers come back as float64 from the
// API and are printed without exponent or trailing zeros.
func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch x := v.(type) {
		case nil:
			out[i] = ""
		case string:
			out[i] = strings.TrimSpace(x)
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			out[i] = strconv.FormatBool(x)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(x))
		}
	}
	return out
}
