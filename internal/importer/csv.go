package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"financify/internal/core"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Column names recognised in the header row, compared lower-cased and trimmed.
const (
	colDate        = "date"
	colAmount      = "amount"
	colType        = "type"
	colCategory    = "category"
	colDescription = "description"
)

// ReadCSV reads import records from a CSV with a header row. A leading UTF-8
// BOM is ignored.
func ReadCSV(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.NewValidationError("csv", "missing header row")
	}
	if err != nil {
		return nil, core.NewValidationError("csv", err.Error())
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.NewValidationError("csv", err.Error())
		}
		rows = append(rows, row)
	}
	return FromRows(header, rows)
}

// FromRows maps a header row and data rows to records. Header names are
// matched lower-cased and trimmed. The date and amount columns are
// required; type, category and description may be absent. Blank rows are
// skipped.
func FromRows(header []string, rows [][]string) ([]Record, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, required := range []string{colDate, colAmount} {
		if _, ok := cols[required]; !ok {
			return nil, core.NewValidationError("import", fmt.Sprintf("missing %q column", required))
		}
	}

	get := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []Record
	for _, row := range rows {
		if isBlank(row) {
			continue
		}
		records = append(records, Record{
			Date:        get(row, colDate),
			Amount:      get(row, colAmount),
			Type:        get(row, colType),
			Category:    get(row, colCategory),
			Description: get(row, colDescription),
		})
	}
	return records, nil
}

// WriteCSV writes transactions with the columns ReadCSV accepts plus the
// account name and tags, so an export can be imported again.
func WriteCSV(w io.Writer, items []core.TransactionView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{colDate, colAmount, colType, colCategory, colDescription, "account", "tags"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range items {
		if err := cw.Write([]string{
			t.Date.String(),
			t.Amount.Abs().String(),
			string(t.Kind),
			t.Category,
			t.Description,
			t.AccountName,
			t.Tags,
		}); err != nil {
			return fmt.Errorf("write transaction %d: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
