package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financify/internal/core"
)

// failOnBoom makes any insert or update of a transaction described as "boom"
// abort, so a unit can be made to fail after earlier statements succeeded.
const failOnBoom = `
CREATE TRIGGER fail_insert_boom BEFORE INSERT ON transactions
WHEN NEW.description = 'boom'
BEGIN SELECT RAISE(ABORT, 'boom'); END;
CREATE TRIGGER fail_update_boom BEFORE UPDATE ON transactions
WHEN NEW.description = 'boom'
BEGIN SELECT RAISE(ABORT, 'boom'); END;
`

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	_, err = repo.DB().Exec(failOnBoom)
	require.NoError(t, err)
	return repo
}

// newUser registers a user and returns it with its default account.
func newUser(t *testing.T, repo *SQLiteRepository, name string) (core.User, core.Account) {
	t.Helper()
	ctx := context.Background()
	u, err := repo.CreateUser(ctx, name, "hash:"+name)
	require.NoError(t, err)
	accounts, err := repo.ListAccounts(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	return u, accounts[0]
}

func tx(userID, accountID int64, date string, cents int64, kind core.Kind, category, desc string) core.Transaction {
	d, err := core.ParseISODate(date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		UserID:      userID,
		AccountID:   accountID,
		Date:        d,
		Amount:      core.Money{Cents: cents},
		Kind:        kind,
		Category:    category,
		Description: desc,
	}
}

func balanceOf(t *testing.T, repo *SQLiteRepository, accountID, userID int64) int64 {
	t.Helper()
	a, err := repo.GetAccount(context.Background(), accountID, userID)
	require.NoError(t, err)
	return a.Balance.Cents
}

func requireNoDrift(t *testing.T, repo *SQLiteRepository) {
	t.Helper()
	drifts, err := repo.AuditBalances(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestNewSQLiteRepository_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	u, err := repo.CreateUser(ctx, "alice", "h")
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.GetUserByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	v, err := repo.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	require.NoError(t, repo.Ping(ctx))
}

func TestCreateUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u, acc := newUser(t, repo, "alice")
	assert.Equal(t, core.DefaultAccountName, acc.Name)
	assert.Equal(t, core.DefaultAccountType, acc.Type)
	assert.Equal(t, int64(0), acc.Balance.Cents)

	_, err := repo.CreateUser(ctx, "alice", "other")
	require.ErrorIs(t, err, core.ErrValidation)

	got, err := repo.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash:alice", got.CredentialHash)

	_, err = repo.GetUser(ctx, 9999)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestEnsureDefaultAccount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u, acc := newUser(t, repo, "alice")

	created, err := repo.EnsureDefaultAccount(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, created)

	// Remove the account directly, as a pre-existing store without one would.
	_, err = repo.DB().Exec(`DELETE FROM accounts WHERE id = ?`, acc.ID)
	require.NoError(t, err)

	created, err = repo.EnsureDefaultAccount(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, created)

	accounts, err := repo.ListAccounts(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Checking", accounts[0].Name)

	_, err = repo.EnsureDefaultAccount(ctx, 9999)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteUser_Cascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u, acc := newUser(t, repo, "alice")

	_, err := repo.AddTransaction(ctx, tx(u.ID, acc.ID, "2024-03-01", -1000, core.Expense, "Food", "lunch"))
	require.NoError(t, err)
	require.NoError(t, repo.UpsertTotalBudget(ctx, core.TotalBudget{UserID: u.ID, Period: core.Period{Month: 3, Year: 2024}, Amount: core.Money{Cents: 5000}}))

	require.NoError(t, repo.DeleteUser(ctx, u.ID))

	for _, table := range []string{"accounts", "transactions", "budgets"} {
		var n int
		require.NoError(t, repo.DB().QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE user_id = ?`, u.ID).Scan(&n))
		assert.Zero(t, n, table)
	}

	require.ErrorIs(t, repo.DeleteUser(ctx, u.ID), core.ErrNotFound)
}
