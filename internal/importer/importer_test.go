package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"financify/internal/core"
)

var fixedNow = time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-03-05", "2024-03-05"},
		{"2024-3-5", "2024-03-05"},
		{"05-03-2024", "2024-03-05"},
		{"03/05/2024", "2024-03-05"}, // month first wins over day first
		{"25/12/2024", "2024-12-25"}, // not a valid month, so day first
		{"2024/03/05", "2024-03-05"},
		{"05-03-24", "2024-03-05"},
		{" 2024-03-05 ", "2024-03-05"},
		{"", "2024-06-15"},
		{"yesterday", "2024-06-15"},
		{"2024-13-45", "2024-06-15"},
		{"31-13-2024", "2024-06-15"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseDate(tt.in, fixedNow).String(); got != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestToTransactions(t *testing.T) {
	records := []Record{
		{Date: "2024-03-01", Amount: "12.50", Type: "expense", Category: "Food", Description: "lunch"},
		{Date: "2024-03-02", Amount: "-1000", Type: "INCOME", Category: "Salary"},
		{Date: "bad", Amount: "3", Type: "refund"},
	}

	got, err := ToTransactions(records, fixedNow)
	if err != nil {
		t.Fatalf("ToTransactions() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}

	if got[0].Amount.Cents != -1250 || got[0].Kind != core.Expense {
		t.Errorf("record 1 = %+v", got[0])
	}
	if got[1].Amount.Cents != 100000 || got[1].Kind != core.Income {
		t.Errorf("record 2 sign must follow kind: %+v", got[1])
	}
	if got[2].Kind != core.Expense || got[2].Category != core.DefaultCategory || got[2].Description != "" {
		t.Errorf("record 3 defaults = %+v", got[2])
	}
	if got[2].Date.String() != "2024-06-15" {
		t.Errorf("record 3 date = %s, want fallback to today", got[2].Date)
	}
}

func TestToTransactions_BadAmount(t *testing.T) {
	records := []Record{
		{Date: "2024-03-01", Amount: "1"},
		{Date: "2024-03-01", Amount: "abc"},
	}

	_, err := ToTransactions(records, fixedNow)
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount in chain, got %v", err)
	}
	if !strings.Contains(err.Error(), "record 2") {
		t.Errorf("error should name the record: %v", err)
	}
}

func TestReadCSV(t *testing.T) {
	input := "\xEF\xBB\xBF Date ,AMOUNT,Type,Category,Description\n" +
		"2024-03-01,12.50,Expense,Food,\"lunch, with team\"\n" +
		"\n" +
		"2024-03-02,100,income,Salary,pay\n"

	records, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}
	want := Record{Date: "2024-03-01", Amount: "12.50", Type: "Expense", Category: "Food", Description: "lunch, with team"}
	if records[0] != want {
		t.Errorf("records[0] = %+v, want %+v", records[0], want)
	}
}

func TestReadCSV_OptionalColumns(t *testing.T) {
	records, err := ReadCSV(strings.NewReader("amount,date\n5,01/02/2024\n"))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(records) != 1 || records[0].Amount != "5" || records[0].Type != "" || records[0].Category != "" {
		t.Errorf("records = %+v", records)
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"missing amount": "date,category\n2024-01-01,Food\n",
		"bad quoting":    "date,amount\n\"2024-01-01,5\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(input)); !errors.Is(err, core.ErrValidation) {
				t.Errorf("ReadCSV() error = %v, want validation error", err)
			}
		})
	}
}

func TestWriteCSV_ReadsBack(t *testing.T) {
	items := []core.TransactionView{
		{
			Transaction: core.Transaction{
				ID:          1,
				Date:        core.NewDate(2024, 3, 1),
				Amount:      core.Money{Cents: -1250},
				Kind:        core.Expense,
				Category:    "Food",
				Description: "lunch",
				Tags:        "work",
			},
			AccountName: "Checking",
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, items); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "date,amount,type,category,description,account,tags\n") {
		t.Errorf("unexpected header: %q", buf.String())
	}

	records, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	got, err := ToTransactions(records, fixedNow)
	if err != nil {
		t.Fatalf("ToTransactions() error = %v", err)
	}
	if got[0].Amount.Cents != -1250 || got[0].Date.String() != "2024-03-01" || got[0].Description != "lunch" {
		t.Errorf("round trip = %+v", got[0])
	}
}
