package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"financify/internal/core"
)

type CreateTransactionParams struct {
	UserID      int64
	AccountID   int64
	Date        string
	AmountCents int64
	Kind        string
	Category    string
	Description string
	Tags        string
}

const createTransaction = `
INSERT INTO transactions (user_id, account_id, date, amount_cents, kind, category, description, tags)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createTransaction,
		arg.UserID,
		arg.AccountID,
		arg.Date,
		arg.AmountCents,
		arg.Kind,
		arg.Category,
		arg.Description,
		arg.Tags,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getTransaction = `
SELECT id, user_id, account_id, date, amount_cents, kind, category, description, tags
FROM transactions WHERE id = ? AND user_id = ?
`

func (q *Queries) GetTransaction(ctx context.Context, id, userID int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id, userID)
	return scanTransaction(row)
}

type UpdateTransactionParams struct {
	ID          int64
	UserID      int64
	AccountID   int64
	Date        string
	AmountCents int64
	Kind        string
	Category    string
	Description string
	Tags        sql.NullString
}

const updateTransaction = `
UPDATE transactions
SET account_id = ?, date = ?, amount_cents = ?, kind = ?, category = ?, description = ?,
    tags = COALESCE(?, tags)
WHERE id = ? AND user_id = ?
`

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		arg.AccountID,
		arg.Date,
		arg.AmountCents,
		arg.Kind,
		arg.Category,
		arg.Description,
		arg.Tags,
		arg.ID,
		arg.UserID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `
DELETE FROM transactions WHERE id = ? AND user_id = ?
`

func (q *Queries) DeleteTransaction(ctx context.Context, id, userID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteUserTransactions = `
DELETE FROM transactions WHERE user_id = ?
`

func (q *Queries) DeleteUserTransactions(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, deleteUserTransactions, userID)
	return err
}

type TransactionExistsParams struct {
	UserID         int64
	Date           string
	AmountAbsCents int64
	Description    string
}

const transactionExists = `
SELECT EXISTS (
    SELECT 1 FROM transactions
    WHERE user_id = ? AND date = ? AND ABS(amount_cents) = ? AND description = ?
)
`

// TransactionExists matches on amount magnitude, so an imported expense of
// 12.00 finds a stored -12.00.
func (q *Queries) TransactionExists(ctx context.Context, arg TransactionExistsParams) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, transactionExists,
		arg.UserID, arg.Date, arg.AmountAbsCents, arg.Description).Scan(&exists)
	return exists, err
}

type ListTransactionsParams struct {
	UserID int64
	Search string
	Limit  int
}

const listTransactions = `
SELECT t.id, t.user_id, t.account_id, t.date, t.amount_cents, t.kind, t.category, t.description, t.tags, a.name
FROM transactions t
JOIN accounts a ON a.id = t.account_id
WHERE t.user_id = ?
  AND (? = '' OR t.category LIKE ? ESCAPE '\' OR t.description LIKE ? ESCAPE '\' OR a.name LIKE ? ESCAPE '\')
ORDER BY t.date DESC, t.id DESC
LIMIT ?
`

// ListTransactions returns most recent first. A Limit of zero or less
// returns every row.
func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]core.TransactionView, error) {
	search := strings.TrimSpace(arg.Search)
	pattern := "%" + escapeLike(search) + "%"
	limit := arg.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := q.db.QueryContext(ctx, listTransactions,
		arg.UserID, search, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.TransactionView
	for rows.Next() {
		var (
			v    core.TransactionView
			date string
			kind string
		)
		if err := rows.Scan(
			&v.ID,
			&v.UserID,
			&v.AccountID,
			&date,
			&v.Amount.Cents,
			&kind,
			&v.Category,
			&v.Description,
			&v.Tags,
			&v.AccountName,
		); err != nil {
			return nil, err
		}
		if v.Date, err = parseStoredDate(date); err != nil {
			return nil, err
		}
		v.Kind = core.Kind(kind)
		items = append(items, v)
	}
	return items, rows.Err()
}

func scanTransaction(row *sql.Row) (core.Transaction, error) {
	var (
		t    core.Transaction
		date string
		kind string
	)
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.AccountID,
		&date,
		&t.Amount.Cents,
		&kind,
		&t.Category,
		&t.Description,
		&t.Tags,
	); err != nil {
		return core.Transaction{}, err
	}
	d, err := parseStoredDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Date = d
	t.Kind = core.Kind(kind)
	return t, nil
}

func parseStoredDate(s string) (core.Date, error) {
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse stored date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
