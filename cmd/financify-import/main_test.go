package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financify/internal/core"
	"financify/internal/services"
	"financify/internal/storage"
)

func newEngine(t *testing.T) *services.Engine {
	t.Helper()
	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	e := services.NewEngine(store, services.DefaultOptions())
	t.Cleanup(func() { e.Close() })
	return e
}

func TestExportCSVWritesFile(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	u, err := e.Ledger.RegisterUser(ctx, "alice", "h")
	require.NoError(t, err)
	accounts, err := e.Ledger.Accounts(ctx, u.ID)
	require.NoError(t, err)
	_, err = e.Ledger.Add(ctx, u.ID, core.NewTransaction{
		AccountID:   accounts[0].ID,
		Date:        core.NewDate(2024, 3, 1),
		RawAmount:   "12.50",
		Kind:        core.Expense,
		Category:    "Food",
		Description: "lunch",
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, exportCSV(ctx, e, u.ID, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "date,amount,type,category,description"))
	assert.Contains(t, lines[1], "lunch")
}

func TestExportCSVReportsFileErrors(t *testing.T) {
	e := newEngine(t)
	path := filepath.Join(t.TempDir(), "missing", "out.csv")
	err := exportCSV(context.Background(), e, 1, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create")
}
