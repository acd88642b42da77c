package services

import (
	"context"
	"strings"
	"time"

	"financify/internal/amqp"
	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/storage"
)

// LedgerService owns users, accounts and transactions. Every mutation is a
// single storage unit; on success the balance invariant holds for each
// touched account.
type LedgerService struct {
	store  *storage.SQLiteRepository
	notify *notifier
	now    func() time.Time
}

// RegisterUser creates the user and its default Checking account.
func (s *LedgerService) RegisterUser(ctx context.Context, username, credentialHash string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return core.User{}, s.fail(ctx, log.OpCreate, core.NewValidationError("username", "is required"), nil)
	}
	u, err := s.store.CreateUser(ctx, username, credentialHash)
	if err != nil {
		return core.User{}, s.fail(ctx, log.OpCreate, err, nil)
	}
	s.notify.committed(ctx, log.ComponentLedger, log.OpCreate, amqp.NewLedgerEvent(amqp.UserRegistered, u.ID), nil)
	return u, nil
}

// EnsureDefaultAccount creates the default account on first login when the
// user has none. It reports whether one was created.
func (s *LedgerService) EnsureDefaultAccount(ctx context.Context, userID int64) (bool, error) {
	created, err := s.store.EnsureDefaultAccount(ctx, userID)
	if err != nil {
		return false, s.fail(ctx, log.OpCreate, err, log.NewFields().WithUser(userID))
	}
	if created {
		s.notify.reports.Invalidate(userID)
	}
	return created, nil
}

func (s *LedgerService) OpenAccount(ctx context.Context, userID int64, name, accountType string) (core.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Account{}, s.fail(ctx, log.OpCreate, core.NewValidationError("name", "is required"), nil)
	}
	if strings.TrimSpace(accountType) == "" {
		accountType = core.DefaultAccountType
	}
	a, err := s.store.CreateAccount(ctx, userID, name, accountType)
	if err != nil {
		return core.Account{}, s.fail(ctx, log.OpCreate, err, log.NewFields().WithUser(userID))
	}
	s.notify.committed(ctx, log.ComponentLedger, log.OpCreate,
		amqp.NewLedgerEvent(amqp.AccountOpened, userID, a.ID), nil)
	return a, nil
}

// Accounts always re-reads balances from the store.
func (s *LedgerService) Accounts(ctx context.Context, userID int64) ([]core.Account, error) {
	return s.store.ListAccounts(ctx, userID)
}

// Add normalizes n.RawAmount to a magnitude signed by n.Kind and records the
// transaction.
func (s *LedgerService) Add(ctx context.Context, userID int64, n core.NewTransaction) (int64, error) {
	t, err := s.build(userID, n)
	if err != nil {
		return 0, s.fail(ctx, log.OpCreate, err, log.NewFields().WithUser(userID))
	}

	id, err := s.store.AddTransaction(ctx, t)
	if err != nil {
		return 0, s.fail(ctx, log.OpCreate, err, log.NewFields().WithUser(userID).WithTransaction(0, t.AccountID, t.Amount.Cents))
	}

	ev := amqp.NewLedgerEvent(amqp.TransactionAdded, userID, t.AccountID)
	ev.TransactionID = id
	s.notify.committed(ctx, log.ComponentLedger, log.OpCreate, ev,
		log.NewFields().WithTransaction(id, t.AccountID, t.Amount.Cents))
	return id, nil
}

// Edit replaces the editable fields of a transaction, moving its effect
// between accounts when the account changes. The new account must belong to
// the user.
func (s *LedgerService) Edit(ctx context.Context, userID, id int64, u core.TransactionUpdate) error {
	if err := u.Validate(); err != nil {
		return s.fail(ctx, log.OpUpdate, err, log.NewFields().WithUser(userID))
	}
	amount, err := core.ParseAmount(u.RawAmount)
	if err != nil {
		return s.fail(ctx, log.OpUpdate, err, log.NewFields().WithUser(userID))
	}

	next := core.Transaction{
		ID:          id,
		UserID:      userID,
		AccountID:   u.AccountID,
		Date:        u.Date,
		Amount:      amount.Signed(u.Kind),
		Kind:        u.Kind,
		Category:    strings.TrimSpace(u.Category),
		Description: u.Description,
	}
	if u.Tags != nil {
		next.Tags = *u.Tags
	}

	prev, err := s.store.UpdateTransaction(ctx, next, u.Tags == nil)
	if err != nil {
		return s.fail(ctx, log.OpUpdate, err, log.NewFields().WithUser(userID).WithTransaction(id, next.AccountID, next.Amount.Cents))
	}

	ev := amqp.NewLedgerEvent(amqp.TransactionUpdated, userID, prev.AccountID, next.AccountID)
	ev.TransactionID = id
	s.notify.committed(ctx, log.ComponentLedger, log.OpUpdate, ev,
		log.NewFields().WithTransaction(id, next.AccountID, next.Amount.Cents))
	return nil
}

func (s *LedgerService) Delete(ctx context.Context, userID, id int64) error {
	prev, err := s.store.DeleteTransaction(ctx, id, userID)
	if err != nil {
		return s.fail(ctx, log.OpDelete, err, log.NewFields().WithUser(userID))
	}

	ev := amqp.NewLedgerEvent(amqp.TransactionDeleted, userID, prev.AccountID)
	ev.TransactionID = id
	s.notify.committed(ctx, log.ComponentLedger, log.OpDelete, ev,
		log.NewFields().WithTransaction(id, prev.AccountID, prev.Amount.Cents))
	return nil
}

// Clone re-adds a copy of the transaction dated today, with the description
// marked as a clone.
func (s *LedgerService) Clone(ctx context.Context, userID, id int64) (int64, error) {
	src, err := s.store.GetTransaction(ctx, id, userID)
	if err != nil {
		return 0, s.fail(ctx, log.OpClone, err, log.NewFields().WithUser(userID))
	}

	return s.Add(ctx, userID, core.NewTransaction{
		AccountID:   src.AccountID,
		Date:        core.DateOf(s.now()),
		RawAmount:   src.Amount.Abs().String(),
		Kind:        src.Kind,
		Category:    src.Category,
		Description: src.Description + core.CloneSuffix,
		Tags:        src.Tags,
	})
}

func (s *LedgerService) Get(ctx context.Context, userID, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id, userID)
}

// Query lists the user's transactions newest first, optionally filtered by
// a case-insensitive substring of category, description or account name.
func (s *LedgerService) Query(ctx context.Context, userID int64, search string) ([]core.TransactionView, error) {
	return s.store.ListTransactions(ctx, userID, strings.TrimSpace(search), 0)
}

// Wipe deletes the user's transactions and budgets and zeroes balances.
func (s *LedgerService) Wipe(ctx context.Context, userID int64) error {
	if err := s.store.WipeUserData(ctx, userID); err != nil {
		return s.fail(ctx, log.OpWipe, err, log.NewFields().WithUser(userID))
	}
	s.notify.committed(ctx, log.ComponentLedger, log.OpWipe, amqp.NewLedgerEvent(amqp.UserDataWiped, userID), nil)
	return nil
}

func (s *LedgerService) DeleteUser(ctx context.Context, userID int64) error {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return s.fail(ctx, log.OpDelete, err, log.NewFields().WithUser(userID))
	}
	s.notify.committed(ctx, log.ComponentLedger, log.OpDelete, amqp.NewLedgerEvent(amqp.UserDeleted, userID), nil)
	return nil
}

// Audit reports accounts whose cached balance drifted from their
// transactions. userID 0 audits every user.
func (s *LedgerService) Audit(ctx context.Context, userID int64) ([]core.BalanceDrift, error) {
	return s.store.AuditBalances(ctx, userID)
}

// Repair rewrites drifted balances and returns what it fixed.
func (s *LedgerService) Repair(ctx context.Context, userID int64) ([]core.BalanceDrift, error) {
	drifts, err := s.store.RepairBalances(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, log.OpRepair, err, log.NewFields().WithUser(userID))
	}
	for _, uid := range driftUsers(drifts) {
		s.notify.reports.Invalidate(uid)
	}
	return drifts, nil
}

func (s *LedgerService) build(userID int64, n core.NewTransaction) (core.Transaction, error) {
	if err := n.Validate(); err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(n.RawAmount)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		UserID:      userID,
		AccountID:   n.AccountID,
		Date:        n.Date,
		Amount:      amount.Signed(n.Kind),
		Kind:        n.Kind,
		Category:    strings.TrimSpace(n.Category),
		Description: n.Description,
		Tags:        n.Tags,
	}, nil
}

func (s *LedgerService) fail(ctx context.Context, op string, err error, fields log.LogFields) error {
	s.notify.failed(ctx, "Ledger operation failed", err, log.ComponentLedger, op, fields)
	return err
}

func driftUsers(drifts []core.BalanceDrift) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, d := range drifts {
		if !seen[d.UserID] {
			seen[d.UserID] = true
			out = append(out, d.UserID)
		}
	}
	return out
}
