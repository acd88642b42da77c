package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"financify/internal/log"
	"financify/internal/services"
	"financify/internal/storage"
)

var testNow = time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)

type apiClient struct {
	t   *testing.T
	srv *Server
}

func newTestServer(t *testing.T, opts Options) *apiClient {
	t.Helper()
	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	engineOpts := services.DefaultOptions()
	engineOpts.Now = func() time.Time { return testNow }
	engineOpts.Logger = log.New(log.Config{Output: io.Discard})
	engine := services.NewEngine(store, engineOpts)

	opts.Now = func() time.Time { return testNow }
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Output: io.Discard})
	}
	srv := NewServer(":0", engine, opts)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = engine.Close()
	})
	return &apiClient{t: t, srv: srv}
}

// do sends a request as uid (0 means no user header) and returns the
// recorder.
func (c *apiClient) do(method, path string, uid int64, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if uid > 0 {
		req.Header.Set(HeaderUserID, strconv.FormatInt(uid, 10))
	}
	rec := httptest.NewRecorder()
	c.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func (c *apiClient) expect(rec *httptest.ResponseRecorder, status int, dst any) {
	c.t.Helper()
	if rec.Code != status {
		c.t.Fatalf("status = %d, want %d; body: %s", rec.Code, status, rec.Body.String())
	}
	if dst != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
			c.t.Fatalf("decode %q: %v", rec.Body.String(), err)
		}
	}
}

// register creates a user and returns its id and default account id.
func (c *apiClient) register(name string) (int64, int64) {
	c.t.Helper()
	var u userJSON
	c.expect(c.do(http.MethodPost, "/api/users", 0, `{"username":"`+name+`","credential_hash":"x"}`), http.StatusCreated, &u)
	var accounts []accountJSON
	c.expect(c.do(http.MethodGet, "/api/accounts", u.ID, ""), http.StatusOK, &accounts)
	if len(accounts) != 1 {
		c.t.Fatalf("want one default account, got %d", len(accounts))
	}
	return u.ID, accounts[0].ID
}

func (c *apiClient) addTx(uid, acc int64, body string) int64 {
	c.t.Helper()
	body = strings.Replace(body, "{", `{"account_id":`+strconv.FormatInt(acc, 10)+",", 1)
	var out idJSON
	c.expect(c.do(http.MethodPost, "/api/transactions", uid, body), http.StatusCreated, &out)
	return out.ID
}

func (c *apiClient) balance(uid int64) string {
	c.t.Helper()
	var accounts []accountJSON
	c.expect(c.do(http.MethodGet, "/api/accounts", uid, ""), http.StatusOK, &accounts)
	return accounts[0].Balance.String()
}

func TestHealthAndReady(t *testing.T) {
	c := newTestServer(t, Options{})
	for path, body := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		rec := c.do(http.MethodGet, path, 0, "")
		if rec.Code != http.StatusOK || rec.Body.String() != body {
			t.Errorf("%s = %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

func TestMiddlewareChain(t *testing.T) {
	c := newTestServer(t, Options{})
	rec := c.do(http.MethodGet, "/healthz", 0, "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if c.srv.Metrics().TotalRequests != 1 {
		t.Errorf("TotalRequests = %d", c.srv.Metrics().TotalRequests)
	}
}

func TestUserHeaderRequired(t *testing.T) {
	c := newTestServer(t, Options{})
	for _, header := range []string{"", "abc", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
		if header != "" {
			req.Header.Set(HeaderUserID, header)
		}
		rec := httptest.NewRecorder()
		c.srv.Handler.ServeHTTP(rec, req)
		var e errorResponse
		c.expect(rec, http.StatusBadRequest, &e)
		if e.Type != log.ErrorTypeValidation {
			t.Errorf("header %q: type = %q", header, e.Type)
		}
	}
}

func TestTransactionLifecycle(t *testing.T) {
	c := newTestServer(t, Options{})
	uid, acc := c.register("alice")

	salary := c.addTx(uid, acc, `{"date":"2024-03-01","amount":"-3000","kind":"income","category":"Salary","description":"March pay"}`)
	lunch := c.addTx(uid, acc, `{"date":"2024-03-02","amount":12.345,"kind":"Expense","category":"Food","description":"lunch","tags":"work"}`)
	if got := c.balance(uid); got != "2987.65" {
		t.Fatalf("balance = %s, want 2987.65", got)
	}

	var tx transactionJSON
	c.expect(c.do(http.MethodGet, "/api/transactions/"+strconv.FormatInt(lunch, 10), uid, ""), http.StatusOK, &tx)
	if tx.Amount.String() != "-12.35" || tx.Tags != "work" || tx.Kind != "Expense" {
		t.Errorf("stored transaction = %+v", tx)
	}

	// Edit without tags keeps them; the amount changes sign with the kind.
	c.expect(c.do(http.MethodPut, "/api/transactions/"+strconv.FormatInt(lunch, 10), uid,
		`{"account_id":`+strconv.FormatInt(acc, 10)+`,"date":"2024-03-02","amount":"20","kind":"expense","category":"Food","description":"dinner"}`),
		http.StatusNoContent, nil)
	c.expect(c.do(http.MethodGet, "/api/transactions/"+strconv.FormatInt(lunch, 10), uid, ""), http.StatusOK, &tx)
	if tx.Amount.String() != "-20.00" || tx.Tags != "work" || tx.Description != "dinner" {
		t.Errorf("edited transaction = %+v", tx)
	}

	var clone idJSON
	c.expect(c.do(http.MethodPost, "/api/transactions/"+strconv.FormatInt(salary, 10)+"/clone", uid, ""), http.StatusCreated, &clone)
	c.expect(c.do(http.MethodGet, "/api/transactions/"+strconv.FormatInt(clone.ID, 10), uid, ""), http.StatusOK, &tx)
	if tx.Date != "2024-03-15" || tx.Description != "March pay (Clone)" {
		t.Errorf("clone = %+v", tx)
	}

	var list []transactionJSON
	c.expect(c.do(http.MethodGet, "/api/transactions?q=checking", uid, ""), http.StatusOK, &list)
	if len(list) != 3 || list[0].ID != clone.ID || list[0].AccountName != "Checking" {
		t.Errorf("list = %+v", list)
	}

	c.expect(c.do(http.MethodGet, "/api/transactions/recent?limit=1", uid, ""), http.StatusOK, &list)
	if len(list) != 1 {
		t.Errorf("recent len = %d", len(list))
	}

	c.expect(c.do(http.MethodDelete, "/api/transactions/"+strconv.FormatInt(clone.ID, 10), uid, ""), http.StatusNoContent, nil)
	if got := c.balance(uid); got != "2980.00" {
		t.Fatalf("balance after delete = %s, want 2980.00", got)
	}
	c.expect(c.do(http.MethodDelete, "/api/transactions/"+strconv.FormatInt(clone.ID, 10), uid, ""), http.StatusNotFound, nil)
}

func TestTransactionErrors(t *testing.T) {
	c := newTestServer(t, Options{})
	uid, acc := c.register("alice")
	bob, _ := c.register("bob")
	accJSON := strconv.FormatInt(acc, 10)

	tests := []struct {
		name   string
		method string
		path   string
		user   int64
		body   string
		status int
	}{
		{"bad amount", http.MethodPost, "/api/transactions", uid, `{"account_id":` + accJSON + `,"amount":"abc","kind":"expense","category":"Food"}`, http.StatusBadRequest},
		{"zero amount", http.MethodPost, "/api/transactions", uid, `{"account_id":` + accJSON + `,"amount":0,"kind":"expense","category":"Food"}`, http.StatusBadRequest},
		{"unknown kind", http.MethodPost, "/api/transactions", uid, `{"account_id":` + accJSON + `,"amount":1,"kind":"transfer","category":"Food"}`, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/api/transactions", uid, `{"account_id":` + accJSON + `,"date":"15/03/2024","amount":1,"kind":"expense","category":"Food"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/transactions", uid, `{"account_id":` + accJSON + `,"amount":1,"kind":"expense","category":"Food","colour":"red"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/transactions", uid, `{"account_id":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/transactions", uid, ``, http.StatusBadRequest},
		{"foreign account", http.MethodPost, "/api/transactions", bob, `{"account_id":` + accJSON + `,"amount":1,"kind":"expense","category":"Food"}`, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/transactions/abc", uid, ``, http.StatusBadRequest},
		{"missing transaction", http.MethodGet, "/api/transactions/999", uid, ``, http.StatusNotFound},
		{"clone missing", http.MethodPost, "/api/transactions/999/clone", uid, ``, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := c.do(tt.method, tt.path, tt.user, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tt.status, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
	if got := c.balance(uid); got != "0.00" {
		t.Errorf("failed requests changed the balance to %s", got)
	}
}

func TestBudgetsAndReports(t *testing.T) {
	c := newTestServer(t, Options{})
	uid, acc := c.register("alice")

	c.expect(c.do(http.MethodPut, "/api/budgets/total", uid, `{"year":2024,"month":3,"amount":"1000"}`), http.StatusNoContent, nil)
	c.expect(c.do(http.MethodPut, "/api/budgets/categories/Rent", uid, `{"amount":800}`), http.StatusNoContent, nil)
	c.expect(c.do(http.MethodPut, "/api/budgets/categories/Rent", uid, `{"amount":-1}`), http.StatusBadRequest, nil)
	c.expect(c.do(http.MethodPut, "/api/budgets/categories/%23%23TOTAL%23%23", uid, `{"amount":1}`), http.StatusBadRequest, nil)
	c.expect(c.do(http.MethodPut, "/api/budgets/total", uid, `{"month":13,"amount":1}`), http.StatusBadRequest, nil)

	c.addTx(uid, acc, `{"date":"2024-03-01","amount":3000,"kind":"income","category":"Salary"}`)
	c.addTx(uid, acc, `{"date":"2024-03-05","amount":450,"kind":"expense","category":"Food"}`)

	var total totalBudgetJSON
	c.expect(c.do(http.MethodGet, "/api/budgets/total", uid, ""), http.StatusOK, &total)
	if !total.Set || total.Amount.String() != "1000.00" || total.Month != 3 {
		t.Errorf("total = %+v", total)
	}

	var spending []categorySpendingJSON
	c.expect(c.do(http.MethodGet, "/api/budgets/categories?year=2024&month=3", uid, ""), http.StatusOK, &spending)
	if len(spending) != 2 || spending[0].Category != "Food" || spending[0].Budget.Cents != 0 ||
		spending[1].Category != "Rent" || spending[1].Remaining.String() != "800.00" {
		t.Errorf("category budgets = %+v", spending)
	}

	var summary summaryJSON
	c.expect(c.do(http.MethodGet, "/api/reports/dashboard?year=2024&month=3", uid, ""), http.StatusOK, &summary)
	if summary.Remaining.String() != "550.00" || summary.Net.String() != "2550.00" || summary.Spent.String() != "450.00" {
		t.Errorf("summary = %+v", summary)
	}

	var breakdown []categoryAmountJSON
	c.expect(c.do(http.MethodGet, "/api/reports/categories", uid, ""), http.StatusOK, &breakdown)
	if len(breakdown) != 1 || breakdown[0].Category != "Food" {
		t.Errorf("breakdown = %+v", breakdown)
	}

	var trend []monthTotalsJSON
	c.expect(c.do(http.MethodGet, "/api/reports/trend", uid, ""), http.StatusOK, &trend)
	if len(trend) != 6 || trend[5].Month != 3 || trend[5].Income.String() != "3000.00" {
		t.Errorf("trend = %+v", trend)
	}

	var ov overviewJSON
	c.expect(c.do(http.MethodGet, "/api/reports/overview", uid, ""), http.StatusOK, &ov)
	if ov.Summary.Budget.String() != "1000.00" || len(ov.Recent) != 2 || len(ov.CategoryBudgets) != 2 {
		t.Errorf("overview = %+v", ov)
	}

	c.expect(c.do(http.MethodDelete, "/api/budgets/categories/Rent?year=2024&month=3", uid, ""), http.StatusNoContent, nil)
	c.expect(c.do(http.MethodDelete, "/api/budgets/categories/Rent?year=2024&month=3", uid, ""), http.StatusNoContent, nil)
	c.expect(c.do(http.MethodGet, "/api/reports/dashboard?month=x", uid, ""), http.StatusBadRequest, nil)
}

func TestImportExportAndReset(t *testing.T) {
	c := newTestServer(t, Options{})
	uid, acc := c.register("alice")
	path := "/api/import?account_id=" + strconv.FormatInt(acc, 10)
	csv := "date,amount,type,category,description\n2024-03-01,10,expense,Food,lunch\n01-03-2024,100,income,Salary,pay\n"

	var res importJSON
	c.expect(c.do(http.MethodPost, path, uid, csv), http.StatusOK, &res)
	if res.Imported != 2 || res.Skipped != 0 {
		t.Errorf("first import = %+v", res)
	}
	c.expect(c.do(http.MethodPost, path, uid, csv), http.StatusOK, &res)
	if res.Imported != 0 || res.Skipped != 2 {
		t.Errorf("second import = %+v", res)
	}
	c.expect(c.do(http.MethodPost, "/api/import", uid, csv), http.StatusBadRequest, nil)
	c.expect(c.do(http.MethodPost, path, uid, "date,amount\n2024-03-01,ten\n"), http.StatusBadRequest, nil)

	rec := c.do(http.MethodGet, "/api/export", uid, "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("export = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "lunch") {
		t.Errorf("export body = %q", rec.Body.String())
	}

	c.expect(c.do(http.MethodPost, "/api/reset", uid, ""), http.StatusNoContent, nil)
	if got := c.balance(uid); got != "0.00" {
		t.Errorf("balance after reset = %s", got)
	}

	c.expect(c.do(http.MethodDelete, "/api/users/me", uid, ""), http.StatusNoContent, nil)
	var accounts []accountJSON
	c.expect(c.do(http.MethodGet, "/api/accounts", uid, ""), http.StatusOK, &accounts)
	if len(accounts) != 0 {
		t.Errorf("accounts after delete = %+v", accounts)
	}
}

func TestAccounts(t *testing.T) {
	c := newTestServer(t, Options{})
	uid, _ := c.register("alice")

	var created map[string]bool
	c.expect(c.do(http.MethodPost, "/api/accounts/default", uid, ""), http.StatusOK, &created)
	if created["created"] {
		t.Error("default account already exists")
	}

	var acc accountJSON
	c.expect(c.do(http.MethodPost, "/api/accounts", uid, `{"name":"Savings","type":"Savings"}`), http.StatusCreated, &acc)
	if acc.Name != "Savings" || acc.Balance.Cents != 0 {
		t.Errorf("account = %+v", acc)
	}
	c.expect(c.do(http.MethodPost, "/api/users", 0, `{"username":"alice"}`), http.StatusBadRequest, nil)
}

type staticCategories []string

func (s staticCategories) Categories(context.Context) ([]string, error) { return s, nil }

type brokenCategories struct{}

func (brokenCategories) Categories(context.Context) ([]string, error) {
	return nil, errors.New("sheet gone")
}

func TestCategories(t *testing.T) {
	var out map[string][]string

	c := newTestServer(t, Options{})
	c.expect(c.do(http.MethodGet, "/api/categories", 0, ""), http.StatusOK, &out)
	if len(out["categories"]) == 0 {
		t.Error("expected default categories")
	}

	c = newTestServer(t, Options{Categories: staticCategories{"Rent", "Pets"}})
	c.expect(c.do(http.MethodGet, "/api/categories", 0, ""), http.StatusOK, &out)
	if strings.Join(out["categories"], ",") != "Rent,Pets" {
		t.Errorf("categories = %v", out["categories"])
	}

	c = newTestServer(t, Options{Categories: brokenCategories{}})
	c.expect(c.do(http.MethodGet, "/api/categories", 0, ""), http.StatusServiceUnavailable, nil)
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	c := newTestServer(t, Options{RateLimitPerMinute: 2})
	c.register("alice") // one POST

	c.expect(c.do(http.MethodPost, "/api/users", 0, `{"username":"bob"}`), http.StatusCreated, nil)
	var e errorResponse
	c.expect(c.do(http.MethodPost, "/api/users", 0, `{"username":"carol"}`), http.StatusTooManyRequests, &e)
	if e.Type != "rate_limited" {
		t.Errorf("type = %q", e.Type)
	}
	c.expect(c.do(http.MethodGet, "/healthz", 0, ""), http.StatusOK, nil)
}
