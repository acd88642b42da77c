package worker

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financify/internal/amqp"
	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/services"
	"financify/internal/storage"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

type fakeLedger struct {
	mu       sync.Mutex
	drifts   map[int64][]core.BalanceDrift
	audited  []int64
	repaired []int64
	err      error
}

func (f *fakeLedger) Audit(_ context.Context, userID int64) ([]core.BalanceDrift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audited = append(f.audited, userID)
	if f.err != nil {
		return nil, f.err
	}
	if userID == 0 {
		var all []core.BalanceDrift
		for _, d := range f.drifts {
			all = append(all, d...)
		}
		return all, nil
	}
	return f.drifts[userID], nil
}

func (f *fakeLedger) Repair(_ context.Context, userID int64) ([]core.BalanceDrift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repaired = append(f.repaired, userID)
	out := f.drifts[userID]
	delete(f.drifts, userID)
	return out, nil
}

func (f *fakeLedger) auditedUsers() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.audited...)
}

// chanSource feeds events from a channel until ctx ends.
type chanSource struct {
	events chan *amqp.LedgerEvent
	err    error
}

func (s *chanSource) ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error {
	if s.err != nil {
		return s.err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			_ = handler(ctx, ev)
		}
	}
}

func drift(userID, accountID int64) core.BalanceDrift {
	return core.BalanceDrift{UserID: userID, AccountID: accountID, Cached: core.Money{Cents: 1}, Computed: core.Money{Cents: 2}}
}

func TestAuditor_HandleEvent(t *testing.T) {
	ledger := &fakeLedger{drifts: map[int64][]core.BalanceDrift{7: {drift(7, 70)}}}
	a := NewAuditor(ledger, nil, Config{Repair: true}, quietLogger())
	ctx := context.Background()

	for _, typ := range []amqp.EventType{amqp.UserRegistered, amqp.UserDeleted, amqp.BudgetChanged} {
		require.NoError(t, a.HandleEvent(ctx, amqp.NewLedgerEvent(typ, 7)))
	}
	assert.Empty(t, ledger.auditedUsers(), "events that cannot move balances are ignored")

	require.NoError(t, a.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.TransactionAdded, 7, 70)))
	assert.Equal(t, []int64{7}, ledger.auditedUsers())
	assert.Equal(t, []int64{7}, ledger.repaired)

	stats := a.Stats()
	assert.Equal(t, int64(4), stats.EventsHandled)
	assert.Equal(t, int64(1), stats.DriftsFound)
	assert.Equal(t, int64(1), stats.DriftsRepaired)

	ledger.err = errors.New("database is locked")
	err := a.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.TransactionDeleted, 7))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit user 7 after transaction.deleted")
}

func TestAuditor_SweepReportOnly(t *testing.T) {
	ledger := &fakeLedger{drifts: map[int64][]core.BalanceDrift{1: {drift(1, 10)}, 2: {drift(2, 20)}}}
	a := NewAuditor(ledger, nil, Config{}, quietLogger())

	drifts, err := a.Sweep(context.Background())
	require.NoError(t, err)
	assert.Len(t, drifts, 2)
	assert.Empty(t, ledger.repaired)
	assert.Equal(t, int64(1), a.Stats().Sweeps)
}

func TestAuditor_StartStop(t *testing.T) {
	ledger := &fakeLedger{drifts: map[int64][]core.BalanceDrift{}}
	src := &chanSource{events: make(chan *amqp.LedgerEvent)}
	a := NewAuditor(ledger, src, Config{Interval: time.Hour}, quietLogger())

	require.NoError(t, a.Start(context.Background()))
	assert.True(t, a.IsRunning())
	assert.Error(t, a.Start(context.Background()), "second start must fail")

	src.events <- amqp.NewLedgerEvent(amqp.ImportCommitted, 3, 30)
	assert.Eventually(t, func() bool {
		users := ledger.auditedUsers()
		return len(users) == 2
	}, time.Second, 5*time.Millisecond, "startup sweep and event audit")
	assert.ElementsMatch(t, []int64{0, 3}, ledger.auditedUsers())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))
	assert.False(t, a.IsRunning())
}

func TestAuditor_SourceFailureEndsRun(t *testing.T) {
	ledger := &fakeLedger{}
	a := NewAuditor(ledger, &chanSource{err: errors.New("access refused")}, Config{}, quietLogger())

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consume ledger events")
}

func TestAuditor_RepairsRealStore(t *testing.T) {
	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	opts := services.DefaultOptions()
	opts.Logger = quietLogger()
	engine := services.NewEngine(store, opts)
	t.Cleanup(func() { engine.Close() })

	ctx := context.Background()
	u, err := engine.Ledger.RegisterUser(ctx, "alice", "x")
	require.NoError(t, err)
	accounts, err := engine.Ledger.Accounts(ctx, u.ID)
	require.NoError(t, err)
	acc := accounts[0].ID
	_, err = engine.Ledger.Add(ctx, u.ID, core.NewTransaction{
		AccountID: acc, Date: core.NewDate(2024, 3, 1), RawAmount: "5", Kind: core.Expense, Category: "Food",
	})
	require.NoError(t, err)

	_, err = store.DB().Exec(`UPDATE accounts SET balance_cents = 42 WHERE id = ?`, acc)
	require.NoError(t, err)

	a := NewAuditor(engine.Ledger, nil, Config{Repair: true}, quietLogger())
	drifts, err := a.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, int64(42), drifts[0].Cached.Cents)

	after, err := engine.Ledger.Audit(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, after)
}
