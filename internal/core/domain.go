package core

import (
	"strings"
	"time"
)

const (
	Income  Kind = "Income"
	Expense Kind = "Expense"
)

// TotalBudgetCategory is the on-disk category of the per-month total budget row.
const TotalBudgetCategory = "##TOTAL##"

// Defaults applied to accounts and imported records.
const (
	DefaultAccountName = "Checking"
	DefaultAccountType = "Checking"
	DefaultCategory    = "Other"
	CloneSuffix        = " (Clone)"
)

// DefaultCategories are the suggested category names. Categories stay free-form.
var DefaultCategories = []string{
	"Food", "Transport", "Rent", "Utilities", "Salary", "Entertainment",
	"Shopping", "Health", "Education", "Groceries", "Other",
}

type (
	Kind string

	Date struct {
		time.Time
	}

	User struct {
		ID             int64
		Username       string
		CredentialHash string
	}

	Account struct {
		ID      int64
		UserID  int64
		Name    string
		Type    string
		Balance Money
	}

	Transaction struct {
		ID          int64
		UserID      int64
		AccountID   int64
		Date        Date
		Amount      Money // signed: negative for Expense
		Kind        Kind
		Category    string
		Description string
		Tags        string
	}

	// TransactionView is a Transaction joined with its account name.
	TransactionView struct {
		Transaction
		AccountName string
	}

	// NewTransaction carries caller input for AddTransaction. RawAmount is
	// normalized by kind, so its sign is ignored.
	NewTransaction struct {
		AccountID   int64
		Date        Date
		RawAmount   string
		Kind        Kind
		Category    string
		Description string
		Tags        string
	}

	// TransactionUpdate replaces the editable fields of a transaction.
	// A nil Tags keeps the stored tags.
	TransactionUpdate struct {
		AccountID   int64
		Date        Date
		RawAmount   string
		Kind        Kind
		Category    string
		Description string
		Tags        *string
	}

	Period struct {
		Month int
		Year  int
	}

	TotalBudget struct {
		UserID int64
		Period
		Amount Money
	}

	CategoryBudget struct {
		UserID   int64
		Category string
		Period
		Amount Money
	}
)

// ParseKind maps free text to a Kind. Anything other than a case-insensitive
// "income" or "expense" is reported as not ok.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return Income, true
	case "expense":
		return Expense, true
	default:
		return "", false
	}
}

// KindOrExpense coerces unknown or empty kinds to Expense.
func KindOrExpense(s string) Kind {
	if k, ok := ParseKind(s); ok {
		return k
	}
	return Expense
}

func (k Kind) Validate() error {
	if k != Income && k != Expense {
		return NewValidationError("kind", "must be Income or Expense")
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseISODate parses a YYYY-MM-DD string.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, NewValidationError("date", "expected YYYY-MM-DD")
	}
	return Date{Time: t}, nil
}

// DateLayout is the on-disk date format.
const DateLayout = "2006-01-02"

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return NewValidationError("date", "date cannot be zero")
	}
	return nil
}

// Period returns the calendar month containing d.
func (d Date) Period() Period {
	return Period{Month: int(d.Month()), Year: d.Year()}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return NewValidationError("month", "must be between 1 and 12")
	}
	if p.Year < 1 || p.Year > 9999 {
		return NewValidationError("year", "must be between 1 and 9999")
	}
	return nil
}

// Range returns the first day of the period and the first day of the next one.
func (p Period) Range() (Date, Date) {
	start := NewDate(p.Year, p.Month, 1)
	return start, Date{Time: start.AddDate(0, 1, 0)}
}

// Key formats the period as YYYY-MM.
func (p Period) Key() string {
	return NewDate(p.Year, p.Month, 1).Format("2006-01")
}

// Prev returns the period n months before p.
func (p Period) Prev(n int) Period {
	return DateOf(NewDate(p.Year, p.Month, 1).AddDate(0, -n, 0)).Period()
}

func (n NewTransaction) Validate() error {
	if n.AccountID <= 0 {
		return NewValidationError("account_id", "is required")
	}
	if err := n.Date.Validate(); err != nil {
		return err
	}
	if err := n.Kind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(n.Category) == "" {
		return NewValidationError("category", "is required")
	}
	return nil
}

func (u TransactionUpdate) Validate() error {
	return NewTransaction{
		AccountID: u.AccountID,
		Date:      u.Date,
		Kind:      u.Kind,
		Category:  u.Category,
	}.Validate()
}

func (b TotalBudget) Validate() error {
	if err := b.Period.Validate(); err != nil {
		return err
	}
	if b.Amount.IsNegative() {
		return NewValidationError("amount", "budget cannot be negative")
	}
	return nil
}

func (b CategoryBudget) Validate() error {
	category := strings.TrimSpace(b.Category)
	if category == "" {
		return NewValidationError("category", "is required")
	}
	if category == TotalBudgetCategory {
		return NewValidationError("category", "is reserved")
	}
	if err := b.Period.Validate(); err != nil {
		return err
	}
	if b.Amount.IsNegative() {
		return NewValidationError("amount", "budget cannot be negative")
	}
	return nil
}
