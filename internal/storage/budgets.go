package storage

import (
	"context"
	"log/slog"

	"financify/internal/core"
)

// UpsertTotalBudget stores the sentinel row for the user's monthly total.
func (r *SQLiteRepository) UpsertTotalBudget(ctx context.Context, b core.TotalBudget) error {
	return r.upsertBudget(ctx, b.UserID, core.TotalBudgetCategory, b.Period, b.Amount)
}

func (r *SQLiteRepository) UpsertCategoryBudget(ctx context.Context, b core.CategoryBudget) error {
	return r.upsertBudget(ctx, b.UserID, b.Category, b.Period, b.Amount)
}

func (r *SQLiteRepository) upsertBudget(ctx context.Context, userID int64, category string, p core.Period, amount core.Money) error {
	err := r.queries.UpsertBudget(ctx, UpsertBudgetParams{
		UserID:      userID,
		Category:    category,
		AmountCents: amount.Cents,
		Month:       p.Month,
		Year:        p.Year,
	})
	if err != nil {
		return core.Unavailable("upsert budget", err)
	}
	slog.InfoContext(ctx, "Budget saved",
		"user_id", userID,
		"category", category,
		"amount_cents", amount.Cents,
		"month", p.Month,
		"year", p.Year)
	return nil
}

// DeleteCategoryBudget is idempotent; it reports whether a row was removed.
func (r *SQLiteRepository) DeleteCategoryBudget(ctx context.Context, userID int64, category string, p core.Period) (bool, error) {
	n, err := r.queries.DeleteBudget(ctx, BudgetKey{
		UserID:   userID,
		Category: category,
		Month:    p.Month,
		Year:     p.Year,
	})
	if err != nil {
		return false, core.Unavailable("delete budget", err)
	}
	return n > 0, nil
}

// TotalBudget returns the monthly total and whether one is set.
func (r *SQLiteRepository) TotalBudget(ctx context.Context, userID int64, p core.Period) (core.Money, bool, error) {
	cents, ok, err := r.queries.GetBudgetAmount(ctx, BudgetKey{
		UserID:   userID,
		Category: core.TotalBudgetCategory,
		Month:    p.Month,
		Year:     p.Year,
	})
	if err != nil {
		return core.Money{}, false, core.Unavailable("get total budget", err)
	}
	return core.Money{Cents: cents}, ok, nil
}

// CategoryBudgetsWithSpending lists configured category budgets next to the
// month's spend, plus spend-only categories with a zero budget.
func (r *SQLiteRepository) CategoryBudgetsWithSpending(ctx context.Context, userID int64, p core.Period) ([]core.CategorySpending, error) {
	items, err := r.queries.CategoryBudgetsWithSpending(ctx, periodParams(userID, p))
	if err != nil {
		return nil, core.Unavailable("category budgets with spending", err)
	}
	return items, nil
}

func periodParams(userID int64, p core.Period) PeriodParams {
	from, to := p.Range()
	return PeriodParams{
		UserID: userID,
		Month:  p.Month,
		Year:   p.Year,
		From:   from.String(),
		To:     to.String(),
	}
}
