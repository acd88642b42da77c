// Package services is the engine facade: validation and normalization in
// front of the storage units, report caching, and post-commit notification.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"financify/internal/amqp"
	"financify/internal/cache"
	"financify/internal/log"
	"financify/internal/storage"
)

// Publisher receives ledger events after a mutation commits.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

type Options struct {
	// Publisher is optional; nil disables events.
	Publisher Publisher
	Logger    *log.Logger

	CacheSize int
	CacheTTL  time.Duration

	// Now supplies "today" for clones and import date fallback.
	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		CacheSize: 256,
		CacheTTL:  5 * time.Minute,
		Now:       time.Now,
	}
}

// Engine bundles the four engine surfaces over one store.
type Engine struct {
	Ledger   *LedgerService
	Budgets  *BudgetService
	Importer *ImportService
	Reports  *ReportService

	store  *storage.SQLiteRepository
	caches *cache.Manager
}

func NewEngine(store *storage.SQLiteRepository, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Handler: slog.Default().Handler()})
	}

	reports := NewReportService(store, opts.CacheSize, opts.CacheTTL, opts.Now)
	n := &notifier{
		reports:   reports,
		publisher: opts.Publisher,
		logger:    log.NewStructuredLogger(opts.Logger),
	}

	manager := cache.NewManager()
	for _, c := range reports.cleaners() {
		manager.Register(c)
	}

	return &Engine{
		Ledger:   &LedgerService{store: store, notify: n, now: opts.Now},
		Budgets:  &BudgetService{store: store, notify: n},
		Importer: &ImportService{store: store, notify: n, now: opts.Now},
		Reports:  reports,
		store:    store,
		caches:   manager,
	}
}

// StartCacheSweeper evicts expired report entries every interval until Close.
func (e *Engine) StartCacheSweeper(interval time.Duration) {
	e.caches.StartCleanup(interval)
}

func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// Close stops the cache sweeper and closes the store.
func (e *Engine) Close() error {
	e.caches.Stop()
	if e.store == nil {
		return nil
	}
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("close engine: %w", err)
	}
	return nil
}

// notifier runs after every committed mutation: it drops the user's cached
// reports and publishes the event. Publish failures are logged only; the
// mutation is already durable.
type notifier struct {
	reports   *ReportService
	publisher Publisher
	logger    *log.StructuredLogger
}

func (n *notifier) committed(ctx context.Context, component, op string, ev *amqp.LedgerEvent, fields log.LogFields) {
	n.reports.Invalidate(ev.UserID)
	if fields == nil {
		fields = log.NewFields()
	}
	n.logger.LogMutation(ctx, component, op, fields.WithUser(ev.UserID))

	if n.publisher == nil {
		return
	}
	if err := n.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		n.logger.LogError(ctx, "Failed to publish ledger event", err, log.ComponentAMQP, log.OpPublish,
			log.NewFields().WithUser(ev.UserID))
	}
}

func (n *notifier) failed(ctx context.Context, msg string, err error, component, op string, fields log.LogFields) {
	n.logger.LogError(ctx, msg, err, component, op, fields)
}
