// Package http exposes the ledger engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/middleware/ratelimit"
	"financify/internal/middleware/security"
	"financify/internal/middleware/trace"
	"financify/internal/services"
)

// CategoryLister supplies category suggestions for clients.
type CategoryLister interface {
	Categories(ctx context.Context) ([]string, error)
}

type Options struct {
	RateLimitPerMinute int
	// Categories is optional; core.DefaultCategories is used when nil.
	Categories CategoryLister
	Logger     *log.Logger
	Now        func() time.Time
}

type Server struct {
	http.Server
	engine     *services.Engine
	categories CategoryLister
	limiter    *ratelimit.Limiter
	tracer     *trace.Middleware
	now        func() time.Time

	shutdownOnce sync.Once
}

type (
	apiHandler  func(w http.ResponseWriter, r *http.Request) error
	userHandler func(w http.ResponseWriter, r *http.Request, userID int64) error
)

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, engine *services.Engine, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.FromContext(context.Background())
	}

	clientIP := security.NewClientIP()
	s := &Server{
		engine:     engine,
		categories: opts.Categories,
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:     trace.NewMiddleware(clientIP.Extract, opts.Logger),
		now:        opts.Now,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(clientIP.Extract, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", Type: "rate_limited"})
	})(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = log.Middleware(opts.Logger)(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.api(s.handleReady))

	mux.HandleFunc("POST /api/users", s.api(s.handleRegisterUser))
	mux.HandleFunc("DELETE /api/users/me", s.user(s.handleDeleteUser))
	mux.HandleFunc("POST /api/reset", s.user(s.handleReset))

	mux.HandleFunc("GET /api/accounts", s.user(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.user(s.handleOpenAccount))
	mux.HandleFunc("POST /api/accounts/default", s.user(s.handleEnsureDefaultAccount))
	mux.HandleFunc("GET /api/categories", s.api(s.handleCategories))

	mux.HandleFunc("GET /api/transactions", s.user(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.user(s.handleAddTransaction))
	mux.HandleFunc("GET /api/transactions/recent", s.user(s.handleRecentTransactions))
	mux.HandleFunc("GET /api/transactions/{id}", s.user(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.user(s.handleEditTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.user(s.handleDeleteTransaction))
	mux.HandleFunc("POST /api/transactions/{id}/clone", s.user(s.handleCloneTransaction))

	mux.HandleFunc("GET /api/budgets/total", s.user(s.handleGetTotalBudget))
	mux.HandleFunc("PUT /api/budgets/total", s.user(s.handleSetTotalBudget))
	mux.HandleFunc("GET /api/budgets/categories", s.user(s.handleCategoryBudgets))
	mux.HandleFunc("PUT /api/budgets/categories/{category}", s.user(s.handleSetCategoryBudget))
	mux.HandleFunc("DELETE /api/budgets/categories/{category}", s.user(s.handleDeleteCategoryBudget))

	mux.HandleFunc("GET /api/reports/dashboard", s.user(s.handleDashboard))
	mux.HandleFunc("GET /api/reports/categories", s.user(s.handleBreakdown))
	mux.HandleFunc("GET /api/reports/trend", s.user(s.handleTrend))
	mux.HandleFunc("GET /api/reports/overview", s.user(s.handleOverview))

	mux.HandleFunc("POST /api/import", s.user(s.handleImport))
	mux.HandleFunc("GET /api/export", s.user(s.handleExport))
}

func (s *Server) api(h apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			writeError(w, r, err)
		}
	}
}

// user resolves the caller's id before running h.
func (s *Server) user(h userHandler) http.HandlerFunc {
	return s.api(func(w http.ResponseWriter, r *http.Request) error {
		uid, err := userID(r)
		if err != nil {
			return err
		}
		return h(w, r, uid)
	})
}

// Shutdown stops the rate limiter sweeper and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Metrics returns request counters from the tracer.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports 503 until the store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.engine.Ping(ctx); err != nil {
		return core.Unavailable("ping store", err)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
	return nil
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) error {
	cats := core.DefaultCategories
	if s.categories != nil {
		list, err := s.categories.Categories(r.Context())
		if err != nil {
			return core.Unavailable("list categories", err)
		}
		if len(list) > 0 {
			cats = list
		}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": cats})
	return nil
}
