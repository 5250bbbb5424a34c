// Package core provides money parsing and handling utilities.
//
// Amounts are decimal values serialized as plain JSON numbers so that
// documents written by older clients (which stored floats) load unchanged.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-float currency amount.
type Money struct {
	d decimal.Decimal
}

var ErrInvalidAmount = errors.New("invalid amount")

// Epsilon absorbs rounding left over by clients that send floats.
var Epsilon = MoneyFromCents(1)

func NewMoney(f float64) Money {
	return Money{d: decimal.NewFromFloat(f)}
}

func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{d: d}
}

// ParseMoney parses a positive decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Negative and zero values are rejected.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m := Money{d: d}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// MustMoney is ParseMoney for literals; it panics on malformed input.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Validate() error {
	if !m.d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.d.GreaterThanOrEqual(o.d) }
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }
func (m Money) IsZero() bool { return m.d.IsZero() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) Decimal() decimal.Decimal { return m.d }

// Percent returns pct percent of m.
func (m Money) Percent(pct float64) Money {
	return Money{d: m.d.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100))}
}

// Round returns m rounded half-up to cents.
func (m Money) Round() Money {
	return Money{d: m.d.Round(2)}
}

// Cents returns the amount rounded to whole cents.
func (m Money) Cents() int64 {
	return m.d.Shift(2).Round(0).IntPart()
}

// Float64 is for display and export only; use Money for arithmetic.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

func (m Money) String() string {
	return m.d.StringFixed(2)
}

// Sum adds all amounts.
func Sum(amounts ...Money) Money {
	total := Money{}
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// MarshalJSON writes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

// UnmarshalJSON accepts numbers and quoted numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	m.d = d
	return nil
}
