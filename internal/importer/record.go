// Package importer turns raw bulk-import records into ledger transactions
// and reads them from CSV.
package importer

import (
	"fmt"
	"strings"
	"time"

	"financify/internal/core"
)

// Record is one raw import row. Every field is text as found in the source.
type Record struct {
	Date        string
	Amount      string
	Type        string
	Category    string
	Description string
}

// dateLayouts are tried in order; the first that parses wins. Single-digit
// layout elements also accept zero-padded input.
var dateLayouts = []string{
	"2006-1-2", // YYYY-MM-DD
	"2-1-2006", // DD-MM-YYYY
	"1/2/2006", // MM/DD/YYYY
	"2/1/2006", // DD/MM/YYYY
	"2006/1/2", // YYYY/MM/DD
	"2-1-06",   // DD-MM-YY
}

// ParseDate normalizes s to a calendar day. Unparsable input falls back to
// the day of now; it never fails.
func ParseDate(s string, now time.Time) core.Date {
	d, ok := parseDate(s)
	if !ok {
		return core.DateOf(now)
	}
	return d
}

func parseDate(s string) (core.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), true
		}
	}
	return core.Date{}, false
}

// ToTransactions validates and normalizes a batch. Amounts are parsed
// before anything is written, so one bad amount fails the whole batch with
// an error naming its 1-based record number. UserID and AccountID are left
// for the caller to fill in.
func ToTransactions(records []Record, now time.Time) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(records))
	for i, r := range records {
		amount, err := core.ParseAmount(r.Amount)
		if err != nil {
			return nil, &core.ValidationError{
				Field:  fmt.Sprintf("record %d amount", i+1),
				Reason: fmt.Sprintf("%q is not a usable amount", r.Amount),
				Err:    err,
			}
		}

		kind := core.KindOrExpense(r.Type)
		category := strings.TrimSpace(r.Category)
		if category == "" {
			category = core.DefaultCategory
		}

		out = append(out, core.Transaction{
			Date:        ParseDate(r.Date, now),
			Amount:      amount.Signed(kind),
			Kind:        kind,
			Category:    category,
			Description: r.Description,
		})
	}
	return out, nil
}
