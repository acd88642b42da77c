package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"financify/internal/core"
)

// AddTransaction inserts t and moves its account balance by t.Amount in one
// atomic unit. t.Amount must already carry the sign implied by t.Kind.
func (r *SQLiteRepository) AddTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	var id int64
	err := r.execTx(ctx, "add transaction", func(q *Queries) error {
		var err error
		id, err = addTransaction(ctx, q, t)
		return err
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"user_id", t.UserID,
		"account_id", t.AccountID,
		"amount_cents", t.Amount.Cents,
		"date", t.Date.String())
	return id, nil
}

// addTransaction is the add primitive shared by AddTransaction and
// ImportTransactions. It must run inside a unit.
func addTransaction(ctx context.Context, q *Queries, t core.Transaction) (int64, error) {
	if err := requireAccount(ctx, q, t.AccountID, t.UserID); err != nil {
		return 0, err
	}

	id, err := q.CreateTransaction(ctx, CreateTransactionParams{
		UserID:      t.UserID,
		AccountID:   t.AccountID,
		Date:        t.Date.String(),
		AmountCents: t.Amount.Cents,
		Kind:        string(t.Kind),
		Category:    t.Category,
		Description: t.Description,
		Tags:        t.Tags,
	})
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	if err := adjustBalance(ctx, q, t.AccountID, t.UserID, t.Amount); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateTransaction reverses the stored effect on the old account, applies
// the new effect to next.AccountID and rewrites the row, all in one unit.
// next.Tags is only written when keepTags is false.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, next core.Transaction, keepTags bool) (core.Transaction, error) {
	var prev core.Transaction
	err := r.execTx(ctx, "edit transaction", func(q *Queries) error {
		var err error
		prev, err = q.GetTransaction(ctx, next.ID, next.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			return &core.NotFoundError{Resource: "transaction", ID: next.ID}
		}
		if err != nil {
			return fmt.Errorf("get transaction: %w", err)
		}

		if err := requireAccount(ctx, q, next.AccountID, next.UserID); err != nil {
			return err
		}

		if err := adjustBalance(ctx, q, prev.AccountID, prev.UserID, prev.Amount.Neg()); err != nil {
			return err
		}
		if err := adjustBalance(ctx, q, next.AccountID, next.UserID, next.Amount); err != nil {
			return err
		}

		tags := sql.NullString{String: next.Tags, Valid: !keepTags}
		n, err := q.UpdateTransaction(ctx, UpdateTransactionParams{
			ID:          next.ID,
			UserID:      next.UserID,
			AccountID:   next.AccountID,
			Date:        next.Date.String(),
			AmountCents: next.Amount.Cents,
			Kind:        string(next.Kind),
			Category:    next.Category,
			Description: next.Description,
			Tags:        tags,
		})
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if n != 1 {
			return &core.NotFoundError{Resource: "transaction", ID: next.ID}
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction updated in SQLite",
		"id", next.ID,
		"user_id", next.UserID,
		"old_account_id", prev.AccountID,
		"new_account_id", next.AccountID,
		"old_amount_cents", prev.Amount.Cents,
		"new_amount_cents", next.Amount.Cents)
	return prev, nil
}

// DeleteTransaction reverses the balance effect and removes the row. It
// returns the deleted transaction.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id, userID int64) (core.Transaction, error) {
	var prev core.Transaction
	err := r.execTx(ctx, "delete transaction", func(q *Queries) error {
		var err error
		prev, err = q.GetTransaction(ctx, id, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return &core.NotFoundError{Resource: "transaction", ID: id}
		}
		if err != nil {
			return fmt.Errorf("get transaction: %w", err)
		}

		if err := adjustBalance(ctx, q, prev.AccountID, userID, prev.Amount.Neg()); err != nil {
			return err
		}

		n, err := q.DeleteTransaction(ctx, id, userID)
		if err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		if n != 1 {
			return &core.NotFoundError{Resource: "transaction", ID: id}
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction deleted from SQLite",
		"id", id,
		"user_id", userID,
		"account_id", prev.AccountID,
		"amount_cents", prev.Amount.Cents)
	return prev, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id, userID int64) (core.Transaction, error) {
	t, err := r.queries.GetTransaction(ctx, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, &core.NotFoundError{Resource: "transaction", ID: id}
	}
	if err != nil {
		return core.Transaction{}, core.Unavailable("get transaction", err)
	}
	return t, nil
}

// ListTransactions returns the user's transactions joined with account
// names, newest first. limit <= 0 returns all of them.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, search string, limit int) ([]core.TransactionView, error) {
	items, err := r.queries.ListTransactions(ctx, ListTransactionsParams{
		UserID: userID,
		Search: search,
		Limit:  limit,
	})
	if err != nil {
		return nil, core.Unavailable("list transactions", err)
	}
	return items, nil
}

// ImportTransactions applies a batch in one unit. A record matching an
// existing transaction of the user on date, amount magnitude and
// description is skipped; this includes records inserted earlier in the
// same batch. Any failure leaves no trace of the batch.
func (r *SQLiteRepository) ImportTransactions(ctx context.Context, userID, accountID int64, batch []core.Transaction) (core.ImportResult, error) {
	var res core.ImportResult
	err := r.execTx(ctx, "import batch", func(q *Queries) error {
		res = core.ImportResult{}
		if err := requireAccount(ctx, q, accountID, userID); err != nil {
			return err
		}
		for i, t := range batch {
			t.UserID = userID
			t.AccountID = accountID

			exists, err := q.TransactionExists(ctx, TransactionExistsParams{
				UserID:         userID,
				Date:           t.Date.String(),
				AmountAbsCents: t.Amount.Abs().Cents,
				Description:    t.Description,
			})
			if err != nil {
				return fmt.Errorf("check duplicate record %d: %w", i+1, err)
			}
			if exists {
				res.Skipped++
				continue
			}

			if _, err := addTransaction(ctx, q, t); err != nil {
				return fmt.Errorf("import record %d: %w", i+1, err)
			}
			res.Imported++
		}
		return nil
	})
	if err != nil {
		return core.ImportResult{}, err
	}

	slog.InfoContext(ctx, "Import batch committed",
		"user_id", userID,
		"account_id", accountID,
		"imported", res.Imported,
		"skipped", res.Skipped)
	return res, nil
}

// WipeUserData deletes the user's transactions and budgets and zeroes every
// account balance. Accounts themselves are kept.
func (r *SQLiteRepository) WipeUserData(ctx context.Context, userID int64) error {
	err := r.execTx(ctx, "wipe user data", func(q *Queries) error {
		if err := q.DeleteUserTransactions(ctx, userID); err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		if err := q.DeleteUserBudgets(ctx, userID); err != nil {
			return fmt.Errorf("delete budgets: %w", err)
		}
		if err := q.ZeroUserBalances(ctx, userID); err != nil {
			return fmt.Errorf("zero balances: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.WarnContext(ctx, "User data wiped", "user_id", userID)
	return nil
}

// AuditBalances compares every cached balance with the sum of its
// transactions. userID 0 audits all users.
func (r *SQLiteRepository) AuditBalances(ctx context.Context, userID int64) ([]core.BalanceDrift, error) {
	sums, err := r.queries.AccountSums(ctx, userID)
	if err != nil {
		return nil, core.Unavailable("audit balances", err)
	}
	return driftsOf(sums), nil
}

// RepairBalances rewrites drifted balances from the transaction log and
// returns what was corrected.
func (r *SQLiteRepository) RepairBalances(ctx context.Context, userID int64) ([]core.BalanceDrift, error) {
	var drifts []core.BalanceDrift
	err := r.execTx(ctx, "repair balances", func(q *Queries) error {
		sums, err := q.AccountSums(ctx, userID)
		if err != nil {
			return fmt.Errorf("sum accounts: %w", err)
		}
		drifts = driftsOf(sums)
		for _, d := range drifts {
			if err := q.SetAccountBalance(ctx, d.AccountID, d.Computed.Cents); err != nil {
				return fmt.Errorf("set balance of account %d: %w", d.AccountID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, d := range drifts {
		slog.WarnContext(ctx, "Account balance repaired",
			"account_id", d.AccountID,
			"user_id", d.UserID,
			"cached_cents", d.Cached.Cents,
			"computed_cents", d.Computed.Cents)
	}
	return drifts, nil
}

func driftsOf(sums []accountSum) []core.BalanceDrift {
	var drifts []core.BalanceDrift
	for _, s := range sums {
		if s.BalanceCents == s.ComputedCents {
			continue
		}
		drifts = append(drifts, core.BalanceDrift{
			AccountID: s.AccountID,
			UserID:    s.UserID,
			Cached:    core.Money{Cents: s.BalanceCents},
			Computed:  core.Money{Cents: s.ComputedCents},
		})
	}
	return drifts
}

func requireAccount(ctx context.Context, q *Queries, accountID, userID int64) error {
	_, err := q.GetAccount(ctx, accountID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &core.NotFoundError{Resource: "account", ID: accountID}
	}
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	return nil
}

func adjustBalance(ctx context.Context, q *Queries, accountID, userID int64, delta core.Money) error {
	n, err := q.AdjustAccountBalance(ctx, AdjustBalanceParams{
		ID:         accountID,
		UserID:     userID,
		DeltaCents: delta.Cents,
	})
	if err != nil {
		return fmt.Errorf("adjust balance of account %d: %w", accountID, err)
	}
	if n != 1 {
		return &core.NotFoundError{Resource: "account", ID: accountID}
	}
	return nil
}
