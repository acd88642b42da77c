package storage

import (
	"context"

	"financify/internal/core"
)

// DashboardSummary reads the month's total budget, income and spend.
func (r *SQLiteRepository) DashboardSummary(ctx context.Context, userID int64, p core.Period) (core.DashboardSummary, error) {
	budget, _, err := r.TotalBudget(ctx, userID, p)
	if err != nil {
		return core.DashboardSummary{}, err
	}

	from, to := p.Range()
	income, err := r.queries.SumByKind(ctx, SumByKindParams{
		UserID: userID,
		Kind:   string(core.Income),
		From:   from.String(),
		To:     to.String(),
	})
	if err != nil {
		return core.DashboardSummary{}, core.Unavailable("sum income", err)
	}

	spent, err := r.queries.SumByKind(ctx, SumByKindParams{
		UserID: userID,
		Kind:   string(core.Expense),
		From:   from.String(),
		To:     to.String(),
	})
	if err != nil {
		return core.DashboardSummary{}, core.Unavailable("sum expenses", err)
	}

	return core.NewDashboardSummary(p, budget, core.Money{Cents: income}, core.Money{Cents: spent}), nil
}

// CategoryBreakdown returns absolute expense totals per category, largest
// first, leaving out categories that total zero.
func (r *SQLiteRepository) CategoryBreakdown(ctx context.Context, userID int64, p core.Period) ([]core.CategoryAmount, error) {
	items, err := r.queries.CategoryExpenseTotals(ctx, periodParams(userID, p))
	if err != nil {
		return nil, core.Unavailable("category breakdown", err)
	}
	return items, nil
}

// MonthlyTrend returns income and expense totals for the `months` calendar
// months ending with `current`, oldest first. Months without data are zero.
func (r *SQLiteRepository) MonthlyTrend(ctx context.Context, userID int64, current core.Period, months int) ([]core.MonthTotals, error) {
	if months <= 0 {
		return nil, nil
	}
	first := current.Prev(months - 1)
	from, _ := first.Range()
	_, to := current.Range()

	rows, err := r.queries.MonthlyTotals(ctx, userID, from.String(), to.String())
	if err != nil {
		return nil, core.Unavailable("monthly totals", err)
	}
	byMonth := make(map[string]monthTotalsRow, len(rows))
	for _, row := range rows {
		byMonth[row.Month] = row
	}

	trend := make([]core.MonthTotals, 0, months)
	for i := months - 1; i >= 0; i-- {
		p := current.Prev(i)
		row := byMonth[p.Key()]
		trend = append(trend, core.MonthTotals{
			Period:  p,
			Income:  core.Money{Cents: row.IncomeCents},
			Expense: core.Money{Cents: row.ExpenseCents},
		})
	}
	return trend, nil
}
