package core

// DashboardSummary is the month header shown above the ledger.
type DashboardSummary struct {
	Period
	Budget    Money
	Income    Money
	Spent     Money // absolute value of expenses
	Remaining Money // Budget - Spent
	Net       Money // Income - Spent
}

// NewDashboardSummary derives Remaining and Net from the three inputs.
func NewDashboardSummary(p Period, budget, income, spent Money) DashboardSummary {
	return DashboardSummary{
		Period:    p,
		Budget:    budget,
		Income:    income,
		Spent:     spent,
		Remaining: budget.Sub(spent),
		Net:       income.Sub(spent),
	}
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// CategorySpending pairs a category budget with the month's spend.
// Budget is zero for categories that have spend but no configured limit.
type CategorySpending struct {
	Category string
	Budget   Money
	Spent    Money
}

func (c CategorySpending) Remaining() Money { return c.Budget.Sub(c.Spent) }

// MonthTotals holds income and absolute expense totals for one month.
type MonthTotals struct {
	Period
	Income  Money
	Expense Money
}

// ImportResult counts the outcome of one import batch.
type ImportResult struct {
	Imported int
	Skipped  int
}

// BalanceDrift describes an account whose cached balance disagrees with the
// sum of its transactions.
type BalanceDrift struct {
	AccountID int64
	UserID    int64
	Cached    Money
	Computed  Money
}

// Overview bundles the dashboard views for one month.
type Overview struct {
	Summary         DashboardSummary
	Breakdown       []CategoryAmount
	CategoryBudgets []CategorySpending
	Recent          []TransactionView
}
