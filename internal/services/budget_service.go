package services

import (
	"context"
	"strings"

	"financify/internal/amqp"
	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/storage"
)

// BudgetService keeps per-month budgets: one total per user and month, and
// any number of category limits.
type BudgetService struct {
	store  *storage.SQLiteRepository
	notify *notifier
}

// SetTotal upserts the user's total budget for b.Period.
func (s *BudgetService) SetTotal(ctx context.Context, b core.TotalBudget) error {
	fields := log.NewFields().WithUser(b.UserID).WithPeriod(b.Year, b.Month)
	if err := b.Validate(); err != nil {
		return s.fail(ctx, log.OpUpdate, err, fields)
	}
	if err := s.store.UpsertTotalBudget(ctx, b); err != nil {
		return s.fail(ctx, log.OpUpdate, err, fields)
	}
	s.notify.committed(ctx, log.ComponentBudget, log.OpUpdate,
		amqp.NewLedgerEvent(amqp.BudgetChanged, b.UserID), fields)
	return nil
}

// SetCategory upserts a category limit. The reserved total category name is
// rejected.
func (s *BudgetService) SetCategory(ctx context.Context, b core.CategoryBudget) error {
	b.Category = strings.TrimSpace(b.Category)
	fields := log.NewFields().WithUser(b.UserID).WithPeriod(b.Year, b.Month)
	if err := b.Validate(); err != nil {
		return s.fail(ctx, log.OpUpdate, err, fields)
	}
	if err := s.store.UpsertCategoryBudget(ctx, b); err != nil {
		return s.fail(ctx, log.OpUpdate, err, fields)
	}
	fields[log.FieldCategory] = b.Category
	s.notify.committed(ctx, log.ComponentBudget, log.OpUpdate,
		amqp.NewLedgerEvent(amqp.BudgetChanged, b.UserID), fields)
	return nil
}

// DeleteCategory stops tracking a category for the period. Deleting a
// budget that does not exist is not an error.
func (s *BudgetService) DeleteCategory(ctx context.Context, userID int64, category string, p core.Period) error {
	fields := log.NewFields().WithUser(userID).WithPeriod(p.Year, p.Month)
	category = strings.TrimSpace(category)
	if err := (core.CategoryBudget{UserID: userID, Category: category, Period: p}).Validate(); err != nil {
		return s.fail(ctx, log.OpDelete, err, fields)
	}
	removed, err := s.store.DeleteCategoryBudget(ctx, userID, category, p)
	if err != nil {
		return s.fail(ctx, log.OpDelete, err, fields)
	}
	if !removed {
		return nil
	}
	fields[log.FieldCategory] = category
	s.notify.committed(ctx, log.ComponentBudget, log.OpDelete,
		amqp.NewLedgerEvent(amqp.BudgetChanged, userID), fields)
	return nil
}

// Total returns the total budget for the period and whether one is set.
// An unset budget reads as zero.
func (s *BudgetService) Total(ctx context.Context, userID int64, p core.Period) (core.Money, bool, error) {
	if err := p.Validate(); err != nil {
		return core.Money{}, false, err
	}
	return s.store.TotalBudget(ctx, userID, p)
}

// WithSpending pairs every category budget of the period with the month's
// expense spend. Categories with spend but no budget appear with a zero
// budget. Rows are ordered by category.
func (s *BudgetService) WithSpending(ctx context.Context, userID int64, p core.Period) ([]core.CategorySpending, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.store.CategoryBudgetsWithSpending(ctx, userID, p)
}

func (s *BudgetService) fail(ctx context.Context, op string, err error, fields log.LogFields) error {
	s.notify.failed(ctx, "Budget operation failed", err, log.ComponentBudget, op, fields)
	return err
}
