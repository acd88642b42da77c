package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"financify/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository owns the store handle. Every multi-step mutation runs in
// its own *sql.Tx through execTx.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	dsn     string
}

// DSN builds the connection string used for both the pool and migrations.
// Foreign keys are per connection in SQLite, so they are enabled here.
// _txlock=immediate makes BeginTx take the write lock up front.
func DSN(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, core.Unavailable("create db directory", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, core.Unavailable("open sqlite database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, core.Unavailable("ping database", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, core.Unavailable("run migrations", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		dsn:     dsn,
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the store is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.Unavailable("ping database", err)
	}
	return nil
}

// DB exposes the pool for tests and maintenance tooling.
func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

// SchemaVersion reports the applied migration version.
func (r *SQLiteRepository) SchemaVersion() (uint, error) {
	v, dirty, err := SchemaVersion(r.dsn)
	if err != nil {
		return 0, core.Unavailable("read schema version", err)
	}
	if dirty {
		return v, core.Unavailable("read schema version", fmt.Errorf("schema version %d is dirty", v))
	}
	return v, nil
}

// execTx runs fn as one atomic unit. Any error rolls back every statement
// fn issued; domain errors are returned as-is, everything else is wrapped as
// core.UnavailableError.
func (r *SQLiteRepository) execTx(ctx context.Context, op string, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Unavailable(op+": begin", err)
	}

	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Rollback failed", "operation", op, "error", rbErr)
		}
		return core.Unavailable(op, err)
	}

	if err := tx.Commit(); err != nil {
		return core.Unavailable(op+": commit", err)
	}
	return nil
}

// CreateUser registers a user together with the default Checking account.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, credentialHash string) (core.User, error) {
	var user core.User
	err := r.execTx(ctx, "create user", func(q *Queries) error {
		id, err := q.CreateUser(ctx, username, credentialHash)
		if err != nil {
			if isUniqueViolation(err) {
				return core.NewValidationError("username", "already taken")
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if _, err := q.CreateAccount(ctx, CreateAccountParams{
			UserID: id,
			Name:   core.DefaultAccountName,
			Type:   core.DefaultAccountType,
		}); err != nil {
			return fmt.Errorf("insert default account: %w", err)
		}
		user = core.User{ID: id, Username: username, CredentialHash: credentialHash}
		return nil
	})
	if err != nil {
		return core.User{}, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID, "username", username)
	return user, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := r.queries.GetUser(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, &core.NotFoundError{Resource: "user", ID: id}
	}
	if err != nil {
		return core.User{}, core.Unavailable("get user", err)
	}
	return u, nil
}

// GetUserByName looks a user up for the credential collaborator.
func (r *SQLiteRepository) GetUserByName(ctx context.Context, username string) (core.User, error) {
	u, err := r.queries.GetUserByName(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, &core.NotFoundError{Resource: "user"}
	}
	if err != nil {
		return core.User{}, core.Unavailable("get user by name", err)
	}
	return u, nil
}

// DeleteUser removes the user; accounts, transactions and budgets cascade.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id int64) error {
	return r.execTx(ctx, "delete user", func(q *Queries) error {
		n, err := q.DeleteUser(ctx, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if n == 0 {
			return &core.NotFoundError{Resource: "user", ID: id}
		}
		return nil
	})
}

func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	ids, err := r.queries.ListUserIDs(ctx)
	if err != nil {
		return nil, core.Unavailable("list users", err)
	}
	return ids, nil
}

// EnsureDefaultAccount creates the Checking account when the user has none.
// It reports whether an account was created.
func (r *SQLiteRepository) EnsureDefaultAccount(ctx context.Context, userID int64) (bool, error) {
	created := false
	err := r.execTx(ctx, "ensure default account", func(q *Queries) error {
		if _, err := q.GetUser(ctx, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &core.NotFoundError{Resource: "user", ID: userID}
			}
			return fmt.Errorf("get user: %w", err)
		}
		n, err := q.CountAccounts(ctx, userID)
		if err != nil {
			return fmt.Errorf("count accounts: %w", err)
		}
		if n > 0 {
			return nil
		}
		if _, err := q.CreateAccount(ctx, CreateAccountParams{
			UserID: userID,
			Name:   core.DefaultAccountName,
			Type:   core.DefaultAccountType,
		}); err != nil {
			return fmt.Errorf("insert default account: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}

// CreateAccount adds a named account for the user.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, userID int64, name, accountType string) (core.Account, error) {
	var acc core.Account
	err := r.execTx(ctx, "create account", func(q *Queries) error {
		if _, err := q.GetUser(ctx, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &core.NotFoundError{Resource: "user", ID: userID}
			}
			return fmt.Errorf("get user: %w", err)
		}
		id, err := q.CreateAccount(ctx, CreateAccountParams{UserID: userID, Name: name, Type: accountType})
		if err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		acc = core.Account{ID: id, UserID: userID, Name: name, Type: accountType}
		return nil
	})
	return acc, err
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id, userID int64) (core.Account, error) {
	a, err := r.queries.GetAccount(ctx, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, &core.NotFoundError{Resource: "account", ID: id}
	}
	if err != nil {
		return core.Account{}, core.Unavailable("get account", err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	accounts, err := r.queries.ListAccounts(ctx, userID)
	if err != nil {
		return nil, core.Unavailable("list accounts", err)
	}
	return accounts, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
