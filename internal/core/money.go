// Package core provides money parsing and handling utilities.
//
// Monetary values are kept as integer cents so balance arithmetic is exact at
// two decimals. Free-form input is parsed with shopspring/decimal.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

// maxCents bounds parsed amounts so sums over many rows cannot overflow int64.
const maxCents = int64(1) << 53

const (
	// maxDigits is the number of integer digits of maxCents/100.
	maxDigits = 14
	maxScale  = 32
)

var errOutOfRange = &ValidationError{Field: "amount", Reason: "out of range", Err: ErrInvalidAmount}

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a decimal amount and returns its magnitude rounded to
// cents, half away from zero. Comma decimal separators are accepted when the
// value has no dot. The sign of the input is dropped; zero, non-numeric and
// non-finite values are rejected.
//
// Examples:
//
//	ParseAmount("12.345") -> 1235
//	ParseAmount("-50")    -> 5000
//	ParseAmount("12,34")  -> 1234
func ParseAmount(raw string) (Money, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Money{}, NewValidationError("amount", "is required")
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, &ValidationError{Field: "amount", Reason: "not a finite number", Err: ErrInvalidAmount}
	}
	m, err := FromDecimal(d.Abs())
	if err != nil {
		return Money{}, err
	}
	if m.Cents == 0 {
		return Money{}, &ValidationError{Field: "amount", Reason: "must be non-zero", Err: ErrInvalidAmount}
	}
	return m, nil
}

// ParseBudgetAmount parses a budget limit. Unlike ParseAmount the sign is
// kept so negative limits can be rejected, and zero is allowed.
func ParseBudgetAmount(raw string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Money{}, &ValidationError{Field: "amount", Reason: "not a finite number", Err: ErrInvalidAmount}
	}
	return FromDecimal(d)
}

// FromDecimal rounds d to cents, half away from zero. Values whose magnitude
// exceeds maxCents are rejected before any rescaling, so huge exponents fail
// fast instead of materialising enormous integers.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsZero() {
		return Money{}, nil
	}
	exp := int(d.Exponent())
	digits := len(d.Abs().Coefficient().String())
	switch {
	case digits+exp > maxDigits:
		return Money{}, errOutOfRange
	case digits+exp < -2:
		// below half a cent
		return Money{}, nil
	case exp < -maxScale:
		return Money{}, &ValidationError{Field: "amount", Reason: "too many decimal places", Err: ErrInvalidAmount}
	}
	cents := d.Round(2).Mul(hundred)
	if cents.Abs().GreaterThan(decimal.NewFromInt(maxCents)) {
		return Money{}, errOutOfRange
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Signed applies the sign implied by kind to the magnitude of m.
func (m Money) Signed(kind Kind) Money {
	abs := m.Abs()
	if kind == Expense {
		return Money{Cents: -abs.Cents}
	}
	return abs
}

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }

func (m Money) IsNegative() bool { return m.Cents < 0 }
func (m Money) IsZero() bool     { return m.Cents == 0 }

// Decimal returns m as a two-place decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats m with exactly two decimals, e.g. "-42.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float returns the amount as a float64 for display and JSON output only.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}

// MarshalJSON encodes m as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return &ValidationError{Field: "amount", Reason: "not a finite number", Err: ErrInvalidAmount}
	}
	v, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
