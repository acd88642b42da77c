package storage

import (
	"context"

	"financify/internal/core"
)

const createUser = `
INSERT INTO users (username, credential_hash) VALUES (?, ?)
`

func (q *Queries) CreateUser(ctx context.Context, username, credentialHash string) (int64, error) {
	res, err := q.db.ExecContext(ctx, createUser, username, credentialHash)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getUser = `
SELECT id, username, credential_hash FROM users WHERE id = ?
`

func (q *Queries) GetUser(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := q.db.QueryRowContext(ctx, getUser, id).Scan(&u.ID, &u.Username, &u.CredentialHash)
	return u, err
}

const getUserByName = `
SELECT id, username, credential_hash FROM users WHERE username = ?
`

func (q *Queries) GetUserByName(ctx context.Context, username string) (core.User, error) {
	var u core.User
	err := q.db.QueryRowContext(ctx, getUserByName, username).Scan(&u.ID, &u.Username, &u.CredentialHash)
	return u, err
}

const deleteUser = `
DELETE FROM users WHERE id = ?
`

func (q *Queries) DeleteUser(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteUser, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listUserIDs = `
SELECT id FROM users ORDER BY id
`

func (q *Queries) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listUserIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type CreateAccountParams struct {
	UserID int64
	Name   string
	Type   string
}

const createAccount = `
INSERT INTO accounts (user_id, name, type, balance_cents) VALUES (?, ?, ?, 0)
`

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createAccount, arg.UserID, arg.Name, arg.Type)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const countAccounts = `
SELECT COUNT(*) FROM accounts WHERE user_id = ?
`

func (q *Queries) CountAccounts(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countAccounts, userID).Scan(&n)
	return n, err
}

const getAccount = `
SELECT id, user_id, name, type, balance_cents FROM accounts WHERE id = ? AND user_id = ?
`

func (q *Queries) GetAccount(ctx context.Context, id, userID int64) (core.Account, error) {
	var a core.Account
	err := q.db.QueryRowContext(ctx, getAccount, id, userID).
		Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Balance.Cents)
	return a, err
}

const listAccounts = `
SELECT id, user_id, name, type, balance_cents FROM accounts WHERE user_id = ? ORDER BY id
`

func (q *Queries) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Balance.Cents); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

type AdjustBalanceParams struct {
	ID         int64
	UserID     int64
	DeltaCents int64
}

const adjustAccountBalance = `
UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ? AND user_id = ?
`

// AdjustAccountBalance returns the number of rows touched; zero means the
// account does not exist for that user.
func (q *Queries) AdjustAccountBalance(ctx context.Context, arg AdjustBalanceParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, adjustAccountBalance, arg.DeltaCents, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const setAccountBalance = `
UPDATE accounts SET balance_cents = ? WHERE id = ?
`

func (q *Queries) SetAccountBalance(ctx context.Context, id, cents int64) error {
	_, err := q.db.ExecContext(ctx, setAccountBalance, cents, id)
	return err
}

const zeroUserBalances = `
UPDATE accounts SET balance_cents = 0 WHERE user_id = ?
`

func (q *Queries) ZeroUserBalances(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, zeroUserBalances, userID)
	return err
}

type accountSum struct {
	AccountID     int64
	UserID        int64
	BalanceCents  int64
	ComputedCents int64
}

const accountSums = `
SELECT a.id, a.user_id, a.balance_cents, COALESCE(SUM(t.amount_cents), 0)
FROM accounts a
LEFT JOIN transactions t ON t.account_id = a.id
WHERE ? = 0 OR a.user_id = ?
GROUP BY a.id, a.user_id, a.balance_cents
ORDER BY a.id
`

// AccountSums pairs each cached balance with the sum of its transactions.
// userID 0 selects every account.
func (q *Queries) AccountSums(ctx context.Context, userID int64) ([]accountSum, error) {
	rows, err := q.db.QueryContext(ctx, accountSums, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []accountSum
	for rows.Next() {
		var s accountSum
		if err := rows.Scan(&s.AccountID, &s.UserID, &s.BalanceCents, &s.ComputedCents); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
