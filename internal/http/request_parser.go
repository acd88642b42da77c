package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"financify/internal/core"
)

const (
	maxJSONBody   = 1 << 20
	maxImportBody = 10 << 20
)

// amountField accepts a JSON number or a quoted decimal and keeps the text
// for core.ParseAmount, so no precision is lost to float64.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	if string(b) == "null" {
		*a = ""
		return nil
	}
	*a = amountField(b)
	return nil
}

type userRequest struct {
	Username       string `json:"username"`
	CredentialHash string `json:"credential_hash"`
}

type accountRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type transactionRequest struct {
	AccountID   int64       `json:"account_id"`
	Date        string      `json:"date"`
	Amount      amountField `json:"amount"`
	Kind        string      `json:"kind"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Tags        *string     `json:"tags"`
}

type budgetRequest struct {
	Year   int         `json:"year"`
	Month  int         `json:"month"`
	Amount amountField `json:"amount"`
}

// decodeJSON reads exactly one JSON object into dst. Unknown fields are
// rejected so typos do not silently drop data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var verr *core.ValidationError
		switch {
		case errors.As(err, &verr):
			return err
		case errors.As(err, &maxErr):
			return core.NewValidationError("body", "request body too large")
		case errors.Is(err, io.EOF):
			return core.NewValidationError("body", "request body is empty")
		default:
			return &core.ValidationError{Field: "body", Reason: "malformed JSON", Err: err}
		}
	}
	if dec.More() {
		return core.NewValidationError("body", "unexpected data after JSON object")
	}
	return nil
}

// parseDate accepts YYYY-MM-DD; an empty value means today.
func parseDate(s string, now time.Time) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.DateOf(now), nil
	}
	return core.ParseISODate(s)
}

// parseKind rejects unknown kinds instead of coercing them; only bulk
// import defaults to Expense.
func parseKind(s string) (core.Kind, error) {
	k, ok := core.ParseKind(s)
	if !ok {
		return "", core.NewValidationError("kind", "must be Income or Expense")
	}
	return k, nil
}

func (req transactionRequest) toNew(now time.Time) (core.NewTransaction, error) {
	date, err := parseDate(req.Date, now)
	if err != nil {
		return core.NewTransaction{}, err
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		return core.NewTransaction{}, err
	}
	n := core.NewTransaction{
		AccountID:   req.AccountID,
		Date:        date,
		RawAmount:   string(req.Amount),
		Kind:        kind,
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
	}
	if req.Tags != nil {
		n.Tags = sanitizeInput(*req.Tags)
	}
	return n, nil
}

func (req transactionRequest) toUpdate(now time.Time) (core.TransactionUpdate, error) {
	n, err := req.toNew(now)
	if err != nil {
		return core.TransactionUpdate{}, err
	}
	u := core.TransactionUpdate{
		AccountID:   n.AccountID,
		Date:        n.Date,
		RawAmount:   n.RawAmount,
		Kind:        n.Kind,
		Category:    n.Category,
		Description: n.Description,
	}
	if req.Tags != nil {
		tags := n.Tags
		u.Tags = &tags
	}
	return u, nil
}

// period resolves year and month, defaulting each to the current month.
func period(year, month int, now time.Time) core.Period {
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	return core.Period{Month: month, Year: year}
}

func queryPeriod(r *http.Request, now time.Time) (core.Period, error) {
	year, err := queryInt(r, "year", 0)
	if err != nil {
		return core.Period{}, err
	}
	month, err := queryInt(r, "month", 0)
	if err != nil {
		return core.Period{}, err
	}
	return period(year, month, now), nil
}

func (req budgetRequest) amount() (core.Money, error) {
	if strings.TrimSpace(string(req.Amount)) == "" {
		return core.Money{}, core.NewValidationError("amount", "is required")
	}
	return core.ParseBudgetAmount(string(req.Amount))
}
