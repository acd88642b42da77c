// Package worker runs background balance verification. It re-audits users
// named by ledger events and sweeps every account on a fixed interval.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"financify/internal/amqp"
	"financify/internal/core"
	"financify/internal/log"
)

// Ledger is the part of the engine the auditor drives. userID 0 means every
// user.
type Ledger interface {
	Audit(ctx context.Context, userID int64) ([]core.BalanceDrift, error)
	Repair(ctx context.Context, userID int64) ([]core.BalanceDrift, error)
}

// EventSource delivers ledger events until ctx is done.
type EventSource interface {
	ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
}

type Config struct {
	// Interval between full sweeps.
	Interval time.Duration
	// Repair rewrites drifted balances instead of only reporting them.
	Repair bool
}

func DefaultConfig() Config {
	return Config{Interval: time.Hour}
}

type Stats struct {
	Sweeps         int64
	EventsHandled  int64
	DriftsFound    int64
	DriftsRepaired int64
}

type Auditor struct {
	ledger Ledger
	events EventSource
	config Config
	logger *log.Logger

	stats struct {
		sweeps, events, found, repaired atomic.Int64
	}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	runErr  error
}

// NewAuditor builds an auditor. events may be nil to run sweeps only.
func NewAuditor(ledger Ledger, events EventSource, config Config, logger *log.Logger) *Auditor {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &Auditor{
		ledger: ledger,
		events: events,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Run sweeps once, then sweeps on every tick and handles events until ctx is
// cancelled or the event source fails.
func (a *Auditor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(a.config.Interval)
		defer ticker.Stop()

		a.sweepLogged(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				a.sweepLogged(ctx)
			}
		}
	})

	if a.events != nil {
		g.Go(func() error {
			err := a.events.ConsumeLedgerEvents(ctx, a.HandleEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume ledger events: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Start runs the auditor in the background. It fails if already running.
func (a *Auditor) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("auditor is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	a.running = true
	a.cancel = cancel
	a.doneCh = make(chan struct{})
	a.runErr = nil

	go func() {
		err := a.Run(ctx)
		a.mu.Lock()
		a.runErr = err
		a.running = false
		a.mu.Unlock()
		close(a.doneCh)
	}()

	a.logger.InfoContext(ctx, "Balance auditor started",
		"interval", a.config.Interval,
		"repair", a.config.Repair,
		"events", a.events != nil)
	return nil
}

// Stop cancels a running auditor and waits for it, or for ctx to expire.
// It returns the error that ended the run, if any.
func (a *Auditor) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.doneCh == nil {
		a.mu.Unlock()
		return nil
	}
	cancel, done := a.cancel, a.doneCh
	a.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.WarnContext(ctx, "Balance auditor stop timed out")
		return ctx.Err()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger.InfoContext(ctx, "Balance auditor stopped")
	return a.runErr
}

func (a *Auditor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Done is closed when a started auditor exits. It is nil before Start.
func (a *Auditor) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doneCh
}

func (a *Auditor) Stats() Stats {
	return Stats{
		Sweeps:         a.stats.sweeps.Load(),
		EventsHandled:  a.stats.events.Load(),
		DriftsFound:    a.stats.found.Load(),
		DriftsRepaired: a.stats.repaired.Load(),
	}
}

// Sweep audits every user's accounts.
func (a *Auditor) Sweep(ctx context.Context) ([]core.BalanceDrift, error) {
	a.stats.sweeps.Add(1)
	return a.check(ctx, 0)
}

func (a *Auditor) sweepLogged(ctx context.Context) {
	start := time.Now()
	drifts, err := a.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.ErrorContext(ctx, "Balance sweep failed", log.FieldError, err.Error())
		}
		return
	}
	a.logger.InfoContext(ctx, "Balance sweep completed",
		"drifts", len(drifts),
		log.FieldDuration, time.Since(start).Milliseconds())
}

// HandleEvent re-audits the user an event touched. Errors make the event
// source redeliver it.
func (a *Auditor) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	a.stats.events.Add(1)

	switch ev.Type {
	case amqp.UserDeleted, amqp.UserRegistered:
		// Nothing left to audit, or nothing written yet.
		return nil
	case amqp.BudgetChanged:
		return nil
	}

	if _, err := a.check(ctx, ev.UserID); err != nil {
		return fmt.Errorf("audit user %d after %s: %w", ev.UserID, ev.Type, err)
	}
	return nil
}

// check audits userID and repairs when configured. The returned drifts are
// the ones found, whether or not they were repaired.
func (a *Auditor) check(ctx context.Context, userID int64) ([]core.BalanceDrift, error) {
	drifts, err := a.ledger.Audit(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(drifts) == 0 {
		return nil, nil
	}
	a.stats.found.Add(int64(len(drifts)))

	for _, d := range drifts {
		a.logger.WarnContext(ctx, "Account balance drift detected",
			log.FieldUserID, d.UserID,
			log.FieldAccountID, d.AccountID,
			"cached_cents", d.Cached.Cents,
			"computed_cents", d.Computed.Cents)
	}

	if !a.config.Repair {
		return drifts, nil
	}
	repaired, err := a.ledger.Repair(ctx, userID)
	if err != nil {
		return drifts, err
	}
	a.stats.repaired.Add(int64(len(repaired)))
	return drifts, nil
}
