package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary amount in minor units of the working currency.
type Money int64

// ErrNegative is returned when an operation would produce a negative amount.
var ErrNegative = errors.New("money: negative amount")

// Parse converts an exact decimal string (e.g. "3.50") into minor units,
// rounding half-up to the nearest minor unit.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return Money(d.Shift(2).Round(0).IntPart()), nil
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return m + other
}

// Sub returns m - other or ErrNegative when the result would drop below zero.
// Callers that want saturating behaviour use SubClamped instead.
func (m Money) Sub(other Money) (Money, error) {
	if other > m {
		return 0, fmt.Errorf("money: %d - %d: %w", m, other, ErrNegative)
	}
	return m - other, nil
}

// SubClamped returns max(0, m - other).
func (m Money) SubClamped(other Money) Money {
	if other >= m {
		return 0
	}
	return m - other
}

// MulQty multiplies a unit price by a (possibly fractional) quantity and
// rounds half-up to the minor unit once, at the end.
func MulQty(unit Money, qty decimal.Decimal) Money {
	return Money(decimal.NewFromInt(int64(unit)).Mul(qty).Round(0).IntPart())
}

// PercentOf returns bps/10000 of the amount rounded half-up. bps is expressed
// in basis points, so 10% is 1000.
func PercentOf(m Money, bps int32) Money {
	if m <= 0 || bps <= 0 {
		return 0
	}
	return Money((int64(m)*int64(bps) + 5000) / 10000)
}

// Ratio scales m by num/den rounding half-up, with a zero denominator
// yielding zero. Used to propagate tax proportionally when discounts shrink
// the taxable base.
func Ratio(m, num, den Money) Money {
	if den == 0 || m == 0 {
		return 0
	}
	scaled := decimal.NewFromInt(int64(m)).
		Mul(decimal.NewFromInt(int64(num))).
		Div(decimal.NewFromInt(int64(den)))
	return Money(scaled.Round(0).IntPart())
}

// Min returns the smaller of two amounts.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// String renders the amount with two decimal places, e.g. "7.63".
func (m Money) String() string {
	return decimal.New(int64(m), -2).StringFixed(2)
}
