package totals

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fluxretail/backend-pos/internal/money"
)

// ErrInvalidDiscount is returned for negative or out-of-range discount input.
// A discount whose computed amount merely exceeds its base is clamped instead.
var ErrInvalidDiscount = errors.New("totals: invalid discount")

// Discount kinds.
const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

// Discount describes a percent or fixed reduction. Percent values are carried
// in basis points, so 10% is 1000 bps.
type Discount struct {
	Kind       string
	PercentBps int32
	Amount     money.Money
}

// Validate checks the discount parameters against their allowed ranges.
func (d Discount) Validate() error {
	switch d.Kind {
	case DiscountPercent:
		if d.PercentBps < 0 || d.PercentBps > 10000 {
			return fmt.Errorf("percent %d bps out of range: %w", d.PercentBps, ErrInvalidDiscount)
		}
	case DiscountFixed:
		if d.Amount < 0 {
			return fmt.Errorf("fixed amount below zero: %w", ErrInvalidDiscount)
		}
	default:
		return fmt.Errorf("unknown kind %q: %w", d.Kind, ErrInvalidDiscount)
	}
	return nil
}

// amountFor computes the discount against the base, capped at the base.
func (d Discount) amountFor(base money.Money) money.Money {
	if base <= 0 {
		return 0
	}
	if d.Kind == DiscountPercent {
		return money.PercentOf(base, d.PercentBps)
	}
	return money.Min(d.Amount, base)
}

type modeKind int

const (
	modeNone modeKind = iota
	modePerLine
	modeBill
)

// DiscountMode is the cart-level discount selector. It is a tagged union of
// none, per-line, and bill-level discounts, so a cart can never carry both a
// bill discount and line discounts at the same time.
type DiscountMode struct {
	kind  modeKind
	lines map[uuid.UUID]Discount
	bill  Discount
}

// NoDiscount returns the empty discount mode.
func NoDiscount() DiscountMode {
	return DiscountMode{}
}

// PerLine builds a mode carrying discounts keyed by product id.
func PerLine(lines map[uuid.UUID]Discount) DiscountMode {
	copied := make(map[uuid.UUID]Discount, len(lines))
	for id, d := range lines {
		copied[id] = d
	}
	return DiscountMode{kind: modePerLine, lines: copied}
}

// Bill builds a mode carrying a single whole-cart discount.
func Bill(d Discount) DiscountMode {
	return DiscountMode{kind: modeBill, bill: d}
}

// IsBill reports whether a bill discount is active.
func (m DiscountMode) IsBill() bool { return m.kind == modeBill }

// IsPerLine reports whether line discounts are active.
func (m DiscountMode) IsPerLine() bool { return m.kind == modePerLine }

// IsNone reports whether no discount is active.
func (m DiscountMode) IsNone() bool { return m.kind == modeNone }

// BillDiscount returns the bill discount when the mode is Bill.
func (m DiscountMode) BillDiscount() (Discount, bool) {
	if m.kind != modeBill {
		return Discount{}, false
	}
	return m.bill, true
}

// LineDiscount returns the discount for the given product when one is set.
func (m DiscountMode) LineDiscount(productID uuid.UUID) (Discount, bool) {
	if m.kind != modePerLine {
		return Discount{}, false
	}
	d, ok := m.lines[productID]
	return d, ok
}

// Validate checks every contained discount spec.
func (m DiscountMode) Validate() error {
	switch m.kind {
	case modePerLine:
		for id, d := range m.lines {
			if err := d.Validate(); err != nil {
				return fmt.Errorf("line %s: %w", id, err)
			}
		}
	case modeBill:
		return m.bill.Validate()
	}
	return nil
}
