package storage

import (
	"context"
	"database/sql"
	"errors"

	"financify/internal/core"
)

type UpsertBudgetParams struct {
	UserID      int64
	Category    string
	AmountCents int64
	Month       int
	Year        int
}

const upsertBudget = `
INSERT INTO budgets (user_id, category, amount_cents, month, year)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, category, month, year) DO UPDATE SET amount_cents = excluded.amount_cents
`

func (q *Queries) UpsertBudget(ctx context.Context, arg UpsertBudgetParams) error {
	_, err := q.db.ExecContext(ctx, upsertBudget,
		arg.UserID, arg.Category, arg.AmountCents, arg.Month, arg.Year)
	return err
}

type BudgetKey struct {
	UserID   int64
	Category string
	Month    int
	Year     int
}

const getBudgetAmount = `
SELECT amount_cents FROM budgets WHERE user_id = ? AND category = ? AND month = ? AND year = ?
`

// GetBudgetAmount reports ok=false when no row exists for the key.
func (q *Queries) GetBudgetAmount(ctx context.Context, arg BudgetKey) (cents int64, ok bool, err error) {
	err = q.db.QueryRowContext(ctx, getBudgetAmount,
		arg.UserID, arg.Category, arg.Month, arg.Year).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return cents, true, nil
}

const deleteBudget = `
DELETE FROM budgets WHERE user_id = ? AND category = ? AND month = ? AND year = ?
`

func (q *Queries) DeleteBudget(ctx context.Context, arg BudgetKey) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteBudget, arg.UserID, arg.Category, arg.Month, arg.Year)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteUserBudgets = `
DELETE FROM budgets WHERE user_id = ?
`

func (q *Queries) DeleteUserBudgets(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, deleteUserBudgets, userID)
	return err
}

type PeriodParams struct {
	UserID int64
	Month  int
	Year   int
	From   string // inclusive, YYYY-MM-DD
	To     string // exclusive, YYYY-MM-DD
}

const categoryBudgetsWithSpending = `
WITH spending AS (
    SELECT category, SUM(ABS(amount_cents)) AS spent
    FROM transactions
    WHERE user_id = ? AND kind = 'Expense' AND date >= ? AND date < ?
    GROUP BY category
)
SELECT b.category, b.amount_cents, COALESCE(s.spent, 0)
FROM budgets b
LEFT JOIN spending s ON s.category = b.category
WHERE b.user_id = ? AND b.month = ? AND b.year = ? AND b.category != '##TOTAL##'
UNION ALL
SELECT s.category, 0, s.spent
FROM spending s
WHERE s.category != '##TOTAL##' AND NOT EXISTS (
    SELECT 1 FROM budgets b
    WHERE b.user_id = ? AND b.month = ? AND b.year = ? AND b.category = s.category
)
ORDER BY 1
`

func (q *Queries) CategoryBudgetsWithSpending(ctx context.Context, arg PeriodParams) ([]core.CategorySpending, error) {
	rows, err := q.db.QueryContext(ctx, categoryBudgetsWithSpending,
		arg.UserID, arg.From, arg.To,
		arg.UserID, arg.Month, arg.Year,
		arg.UserID, arg.Month, arg.Year,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.CategorySpending
	for rows.Next() {
		var c core.CategorySpending
		if err := rows.Scan(&c.Category, &c.Budget.Cents, &c.Spent.Cents); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
