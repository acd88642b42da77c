package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"financify/internal/core"
	"financify/internal/log"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.NewValidationError("amount", "bad"), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", &core.NotFoundError{Resource: "transaction", ID: 1}), http.StatusNotFound},
		{core.Unavailable("insert", errors.New("disk full")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		wantMsg  string
		wantType string
	}{
		{core.NewValidationError("amount", "must be non-zero"), http.StatusBadRequest, "invalid amount: must be non-zero", log.ErrorTypeValidation},
		{&core.NotFoundError{Resource: "account", ID: 9}, http.StatusNotFound, "account 9 not found", log.ErrorTypeNotFound},
		{core.Unavailable("insert transaction", errors.New("database is locked")), http.StatusServiceUnavailable, "storage unavailable", log.ErrorTypeUnavailable},
		{errors.New("nil pointer somewhere"), http.StatusInternalServerError, "internal error", log.ErrorTypeInternal},
	}
	logger := log.New(log.Config{Output: io.Discard})
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
		log.Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, tt.err)
		})).ServeHTTP(rec, req)

		if rec.Code != tt.status {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.status)
		}
		var body errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Error != tt.wantMsg || body.Type != tt.wantType {
			t.Errorf("%v: body = %+v", tt.err, body)
		}
	}
}

func TestMoneyEncodesAsFixedDecimal(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, toSummary(core.NewDashboardSummary(
		core.Period{Month: 3, Year: 2024},
		core.Money{Cents: 100000}, core.Money{Cents: 300000}, core.Money{Cents: 45050},
	)))
	body := rec.Body.String()
	for _, want := range []string{`"budget":1000.00`, `"spent":450.50`, `"remaining":549.50`, `"net":2549.50`, `"month":3`} {
		if !strings.Contains(body, want) {
			t.Errorf("body %s missing %s", body, want)
		}
	}
}

func TestToTransactionViews(t *testing.T) {
	views := []core.TransactionView{{
		Transaction: core.Transaction{
			ID: 1, AccountID: 2, Date: core.NewDate(2024, 3, 1),
			Amount: core.Money{Cents: -1250}, Kind: core.Expense, Category: "Food",
		},
		AccountName: "Checking",
	}}
	got := toTransactionViews(views)
	if len(got) != 1 || got[0].Date != "2024-03-01" || got[0].AccountName != "Checking" || got[0].Amount.String() != "-12.50" {
		t.Errorf("toTransactionViews = %+v", got)
	}
	if out := toTransactionViews(nil); out == nil {
		t.Error("empty lists must encode as [] rather than null")
	}
}
