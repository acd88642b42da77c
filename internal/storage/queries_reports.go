package storage

import (
	"context"

	"financify/internal/core"
)

type SumByKindParams struct {
	UserID int64
	Kind   string
	From   string
	To     string
}

const sumByKind = `
SELECT COALESCE(SUM(ABS(amount_cents)), 0)
FROM transactions
WHERE user_id = ? AND kind = ? AND date >= ? AND date < ?
`

// SumByKind returns the absolute total for one kind over [From, To).
func (q *Queries) SumByKind(ctx context.Context, arg SumByKindParams) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, sumByKind, arg.UserID, arg.Kind, arg.From, arg.To).Scan(&total)
	return total, err
}

const categoryExpenseTotals = `
SELECT category, SUM(ABS(amount_cents)) AS total
FROM transactions
WHERE user_id = ? AND kind = 'Expense' AND date >= ? AND date < ?
GROUP BY category
HAVING total > 0
ORDER BY total DESC, category ASC
`

func (q *Queries) CategoryExpenseTotals(ctx context.Context, arg PeriodParams) ([]core.CategoryAmount, error) {
	rows, err := q.db.QueryContext(ctx, categoryExpenseTotals, arg.UserID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.CategoryAmount
	for rows.Next() {
		var c core.CategoryAmount
		if err := rows.Scan(&c.Name, &c.Amount.Cents); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

type monthTotalsRow struct {
	Month        string // YYYY-MM
	IncomeCents  int64
	ExpenseCents int64
}

const monthlyTotals = `
SELECT substr(date, 1, 7) AS month,
       COALESCE(SUM(CASE WHEN kind = 'Income' THEN ABS(amount_cents) ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN kind = 'Expense' THEN ABS(amount_cents) ELSE 0 END), 0)
FROM transactions
WHERE user_id = ? AND date >= ? AND date < ?
GROUP BY month
ORDER BY month ASC
`

func (q *Queries) MonthlyTotals(ctx context.Context, userID int64, from, to string) ([]monthTotalsRow, error) {
	rows, err := q.db.QueryContext(ctx, monthlyTotals, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []monthTotalsRow
	for rows.Next() {
		var m monthTotalsRow
		if err := rows.Scan(&m.Month, &m.IncomeCents, &m.ExpenseCents); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
