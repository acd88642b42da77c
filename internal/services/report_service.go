package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"financify/internal/cache"
	"financify/internal/core"
	"financify/internal/storage"
)

// TrendMonths is the MonthlyTrend window, ending with the current month.
const TrendMonths = 6

// DefaultRecentLimit applies when Recent is asked for a non-positive limit.
const DefaultRecentLimit = 5

// ReportService answers the read-only aggregation queries. Month reports
// are memoized per user; every committed mutation invalidates the user's
// entries before returning to the caller.
type ReportService struct {
	store *storage.SQLiteRepository
	now   func() time.Time

	// gens counts invalidations per user so a load that raced a mutation
	// is not cached.
	mu   sync.Mutex
	gens map[int64]uint64

	summaries  *cache.LRUCache[core.DashboardSummary]
	breakdowns *cache.LRUCache[[]core.CategoryAmount]
	trends     *cache.LRUCache[[]core.MonthTotals]
}

func NewReportService(store *storage.SQLiteRepository, cacheSize int, ttl time.Duration, now func() time.Time) *ReportService {
	if now == nil {
		now = time.Now
	}
	return &ReportService{
		store:      store,
		now:        now,
		gens:       make(map[int64]uint64),
		summaries:  cache.NewLRUCache[core.DashboardSummary](cacheSize, ttl),
		breakdowns: cache.NewLRUCache[[]core.CategoryAmount](cacheSize, ttl),
		trends:     cache.NewLRUCache[[]core.MonthTotals](cacheSize, ttl),
	}
}

func userPrefix(userID int64) string {
	return fmt.Sprintf("u:%d:", userID)
}

func periodKey(userID int64, p core.Period) string {
	return userPrefix(userID) + p.Key()
}

// Invalidate drops every cached report of the user.
func (s *ReportService) Invalidate(userID int64) {
	prefix := userPrefix(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[userID]++
	s.summaries.DeletePrefix(prefix)
	s.breakdowns.DeletePrefix(prefix)
	s.trends.DeletePrefix(prefix)
}

func (s *ReportService) generation(userID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[userID]
}

// remember serves key from c or loads and caches it.
func remember[T any](s *ReportService, c *cache.LRUCache[T], userID int64, key string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	gen := s.generation(userID)
	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	s.mu.Lock()
	if s.gens[userID] == gen {
		c.Set(key, v)
	}
	s.mu.Unlock()
	return v, nil
}

func (s *ReportService) cleaners() []cache.Cleaner {
	return []cache.Cleaner{s.summaries, s.breakdowns, s.trends}
}

// Dashboard returns budget, income, spend, remaining and net for the month.
func (s *ReportService) Dashboard(ctx context.Context, userID int64, p core.Period) (core.DashboardSummary, error) {
	if err := p.Validate(); err != nil {
		return core.DashboardSummary{}, err
	}
	return remember(s, s.summaries, userID, periodKey(userID, p), func() (core.DashboardSummary, error) {
		return s.store.DashboardSummary(ctx, userID, p)
	})
}

// Breakdown returns absolute expense totals per category, largest first.
func (s *ReportService) Breakdown(ctx context.Context, userID int64, p core.Period) ([]core.CategoryAmount, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return remember(s, s.breakdowns, userID, periodKey(userID, p), func() ([]core.CategoryAmount, error) {
		return s.store.CategoryBreakdown(ctx, userID, p)
	})
}

// Trend returns income and expense totals for the last TrendMonths calendar
// months, oldest first. Months without data are zero.
func (s *ReportService) Trend(ctx context.Context, userID int64) ([]core.MonthTotals, error) {
	current := core.DateOf(s.now()).Period()
	key := userPrefix(userID) + "trend:" + current.Key()
	return remember(s, s.trends, userID, key, func() ([]core.MonthTotals, error) {
		return s.store.MonthlyTrend(ctx, userID, current, TrendMonths)
	})
}

// Transactions lists the user's transactions with account names, newest
// first, filtered by search when it is non-empty.
func (s *ReportService) Transactions(ctx context.Context, userID int64, search string) ([]core.TransactionView, error) {
	return s.store.ListTransactions(ctx, userID, search, 0)
}

// Recent returns the newest transactions. limit <= 0 means DefaultRecentLimit.
func (s *ReportService) Recent(ctx context.Context, userID int64, limit int) ([]core.TransactionView, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return s.store.ListTransactions(ctx, userID, "", limit)
}

// Overview loads the month's dashboard views concurrently.
func (s *ReportService) Overview(ctx context.Context, userID int64, p core.Period) (core.Overview, error) {
	if err := p.Validate(); err != nil {
		return core.Overview{}, err
	}

	var out core.Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Summary, err = s.Dashboard(gctx, userID, p)
		return err
	})
	g.Go(func() error {
		var err error
		out.Breakdown, err = s.Breakdown(gctx, userID, p)
		return err
	})
	g.Go(func() error {
		var err error
		out.CategoryBudgets, err = s.store.CategoryBudgetsWithSpending(gctx, userID, p)
		return err
	})
	g.Go(func() error {
		var err error
		out.Recent, err = s.Recent(gctx, userID, DefaultRecentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Overview{}, err
	}
	return out, nil
}
