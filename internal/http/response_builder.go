package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"financify/internal/core"
	"financify/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

// statusFor maps the engine error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports err to the client. Store and internal failures are
// logged here and their details withheld.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		msg = "storage unavailable"
	case http.StatusInternalServerError:
		msg = "internal error"
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(),
			"Unhandled request error", log.FieldError, err.Error(), log.FieldPath, r.URL.Path)
	}
	writeJSON(w, status, errorResponse{Error: msg, Type: log.ErrorType(err)})
}

type (
	userJSON struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}

	accountJSON struct {
		ID      int64      `json:"id"`
		Name    string     `json:"name"`
		Type    string     `json:"type"`
		Balance core.Money `json:"balance"`
	}

	transactionJSON struct {
		ID          int64      `json:"id"`
		AccountID   int64      `json:"account_id"`
		AccountName string     `json:"account_name,omitempty"`
		Date        string     `json:"date"`
		Amount      core.Money `json:"amount"`
		Kind        core.Kind  `json:"kind"`
		Category    string     `json:"category"`
		Description string     `json:"description"`
		Tags        string     `json:"tags"`
	}

	idJSON struct {
		ID int64 `json:"id"`
	}

	summaryJSON struct {
		Year      int        `json:"year"`
		Month     int        `json:"month"`
		Budget    core.Money `json:"budget"`
		Income    core.Money `json:"income"`
		Spent     core.Money `json:"spent"`
		Remaining core.Money `json:"remaining"`
		Net       core.Money `json:"net"`
	}

	categoryAmountJSON struct {
		Category string     `json:"category"`
		Amount   core.Money `json:"amount"`
	}

	categorySpendingJSON struct {
		Category  string     `json:"category"`
		Budget    core.Money `json:"budget"`
		Spent     core.Money `json:"spent"`
		Remaining core.Money `json:"remaining"`
	}

	monthTotalsJSON struct {
		Year    int        `json:"year"`
		Month   int        `json:"month"`
		Income  core.Money `json:"income"`
		Expense core.Money `json:"expense"`
	}

	totalBudgetJSON struct {
		Year   int        `json:"year"`
		Month  int        `json:"month"`
		Amount core.Money `json:"amount"`
		Set    bool       `json:"set"`
	}

	overviewJSON struct {
		Summary         summaryJSON            `json:"summary"`
		Breakdown       []categoryAmountJSON   `json:"breakdown"`
		CategoryBudgets []categorySpendingJSON `json:"category_budgets"`
		Recent          []transactionJSON      `json:"recent"`
	}

	importJSON struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}
)

func toAccounts(in []core.Account) []accountJSON {
	out := make([]accountJSON, 0, len(in))
	for _, a := range in {
		out = append(out, toAccount(a))
	}
	return out
}

func toAccount(a core.Account) accountJSON {
	return accountJSON{ID: a.ID, Name: a.Name, Type: a.Type, Balance: a.Balance}
}

func toTransaction(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Date:        t.Date.String(),
		Amount:      t.Amount,
		Kind:        t.Kind,
		Category:    t.Category,
		Description: t.Description,
		Tags:        t.Tags,
	}
}

func toTransactionViews(in []core.TransactionView) []transactionJSON {
	out := make([]transactionJSON, 0, len(in))
	for _, v := range in {
		tj := toTransaction(v.Transaction)
		tj.AccountName = v.AccountName
		out = append(out, tj)
	}
	return out
}

func toSummary(s core.DashboardSummary) summaryJSON {
	return summaryJSON{
		Year:      s.Year,
		Month:     s.Month,
		Budget:    s.Budget,
		Income:    s.Income,
		Spent:     s.Spent,
		Remaining: s.Remaining,
		Net:       s.Net,
	}
}

func toBreakdown(in []core.CategoryAmount) []categoryAmountJSON {
	out := make([]categoryAmountJSON, 0, len(in))
	for _, c := range in {
		out = append(out, categoryAmountJSON{Category: c.Name, Amount: c.Amount})
	}
	return out
}

func toCategorySpending(in []core.CategorySpending) []categorySpendingJSON {
	out := make([]categorySpendingJSON, 0, len(in))
	for _, c := range in {
		out = append(out, categorySpendingJSON{
			Category:  c.Category,
			Budget:    c.Budget,
			Spent:     c.Spent,
			Remaining: c.Remaining(),
		})
	}
	return out
}

func toTrend(in []core.MonthTotals) []monthTotalsJSON {
	out := make([]monthTotalsJSON, 0, len(in))
	for _, m := range in {
		out = append(out, monthTotalsJSON{Year: m.Year, Month: m.Month, Income: m.Income, Expense: m.Expense})
	}
	return out
}

func toOverview(o core.Overview) overviewJSON {
	return overviewJSON{
		Summary:         toSummary(o.Summary),
		Breakdown:       toBreakdown(o.Breakdown),
		CategoryBudgets: toCategorySpending(o.CategoryBudgets),
		Recent:          toTransactionViews(o.Recent),
	}
}
