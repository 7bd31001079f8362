package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fluxretail/backend-pos/internal/money"
	"github.com/fluxretail/backend-pos/internal/totals"
)

var (
	// ErrInvalidPayment rejects non-positive tenders and non-cash tenders
	// exceeding the remaining due.
	ErrInvalidPayment = errors.New("settlement: invalid payment")
	// ErrIncompleteSettlement is returned when finalize runs before the grand
	// total is covered.
	ErrIncompleteSettlement = errors.New("settlement: payments do not cover grand total")
)

// settledTolerance absorbs a single minor unit of rounding drift from
// per-line discount distribution.
const settledTolerance money.Money = 1

// Session accumulates tendered payments against a cart's grand total. It is
// caller-owned and not safe for concurrent use.
type Session struct {
	lines      []totals.LineItem
	shares     []totals.LineShare
	totals     totals.CartTotals
	customerID *uuid.UUID
	payments   []PaymentRecord
	paid       money.Money
}

// Start opens a settlement for the given totals with an empty payment list.
func Start(lines []totals.LineItem, shares []totals.LineShare, t totals.CartTotals, customerID *uuid.UUID) *Session {
	return &Session{
		lines:      lines,
		shares:     shares,
		totals:     t,
		customerID: customerID,
	}
}

// AddPayment records one tender. Cash may exceed the remaining due to allow
// change-making; every other method is capped at the remaining due because
// non-cash tenders cannot generate change. A failed add leaves the session
// untouched.
func (s *Session) AddPayment(method PaymentMethod, amount money.Money) error {
	if !KnownMethod(method) {
		return fmt.Errorf("unknown method %q: %w", method, ErrInvalidPayment)
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be positive: %w", ErrInvalidPayment)
	}
	if method != MethodCash && amount > s.RemainingDue() {
		return fmt.Errorf("%s tender %s exceeds remaining due %s: %w",
			method, amount, s.RemainingDue(), ErrInvalidPayment)
	}
	s.payments = append(s.payments, PaymentRecord{Method: method, Amount: amount})
	s.paid += amount
	return nil
}

// TotalPaid is the sum of recorded payments.
func (s *Session) TotalPaid() money.Money { return s.paid }

// RemainingDue is the amount still owed, never negative.
func (s *Session) RemainingDue() money.Money {
	return s.totals.GrandTotal.SubClamped(s.paid)
}

// ChangeDue is the overpayment to hand back, never negative.
func (s *Session) ChangeDue() money.Money {
	return s.paid.SubClamped(s.totals.GrandTotal)
}

// Payments returns the tenders recorded so far.
func (s *Session) Payments() []PaymentRecord { return s.payments }

// Totals returns the cart totals the session settles against.
func (s *Session) Totals() totals.CartTotals { return s.totals }

// IsSettled reports whether at least one payment exists and the payments
// cover the grand total within one minor unit.
func (s *Session) IsSettled() bool {
	if len(s.payments) == 0 {
		return false
	}
	return s.paid+settledTolerance >= s.totals.GrandTotal
}

// Finalize freezes the session into a completed transaction. The primary
// method is the single tender's method, or split when more than one tender
// was recorded.
func (s *Session) Finalize(now time.Time) (Transaction, error) {
	if len(s.lines) == 0 {
		return Transaction{}, ErrEmptyCart
	}
	if !s.IsSettled() {
		return Transaction{}, fmt.Errorf("paid %s of %s: %w",
			s.paid, s.totals.GrandTotal, ErrIncompleteSettlement)
	}
	primary := s.payments[0].Method
	if len(s.payments) > 1 {
		primary = MethodSplit
	}
	return Transaction{
		ID:            uuid.New(),
		CreatedAt:     now,
		CustomerID:    s.customerID,
		Lines:         s.lines,
		Shares:        s.shares,
		Totals:        s.totals,
		Payments:      append([]PaymentRecord(nil), s.payments...),
		PrimaryMethod: primary,
		AmountPaid:    s.paid,
		ChangeGiven:   s.ChangeDue(),
		Status:        StatusCompleted,
	}, nil
}
