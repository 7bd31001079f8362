package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fluxretail/backend-pos/internal/money"
	"github.com/fluxretail/backend-pos/internal/totals"
)

// PaymentMethod identifies how an amount was tendered.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bankTransfer"
	MethodStoreCredit  PaymentMethod = "storeCredit"
	MethodOther        PaymentMethod = "other"
	// MethodSplit marks a transaction settled with more than one tender. It is
	// never a valid method for an individual payment.
	MethodSplit PaymentMethod = "split"
)

// KnownMethod reports whether the method is a valid single-payment tender.
func KnownMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodStoreCredit, MethodOther:
		return true
	}
	return false
}

// Status is the transaction lifecycle state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusCompleted Status = "COMPLETED"
	StatusVoided    Status = "VOIDED"
	StatusRefunded  Status = "REFUNDED"
)

// PaymentRecord is one tendered amount, immutable once recorded.
type PaymentRecord struct {
	Method PaymentMethod `json:"method"`
	Amount money.Money   `json:"amount"`
}

// Transaction is a finalized or held sale. Once completed its line items,
// totals, and payments are frozen; only the status may still move to refunded.
type Transaction struct {
	ID            uuid.UUID          `json:"id"`
	CreatedAt     time.Time          `json:"createdAt"`
	CustomerID    *uuid.UUID         `json:"customerId,omitempty"`
	Lines         []totals.LineItem  `json:"lines"`
	Shares        []totals.LineShare `json:"shares,omitempty"`
	Totals        totals.CartTotals  `json:"totals"`
	Payments      []PaymentRecord    `json:"payments"`
	PrimaryMethod PaymentMethod      `json:"primaryMethod,omitempty"`
	AmountPaid    money.Money        `json:"amountPaid"`
	ChangeGiven   money.Money        `json:"changeGiven"`
	Status        Status             `json:"status"`
	Notes         *string            `json:"notes,omitempty"`
}

var (
	// ErrInvalidTransition is returned when void/refund is attempted from the
	// wrong source state.
	ErrInvalidTransition = errors.New("settlement: invalid status transition")
	// ErrEmptyCart is returned when a sale is held or finalized with no lines.
	ErrEmptyCart = errors.New("settlement: cart has no line items")
)

// Hold persists-ready snapshot of an unfinished sale: draft status, totals
// captured, no payments.
func Hold(lines []totals.LineItem, shares []totals.LineShare, t totals.CartTotals, customerID *uuid.UUID, notes *string, now time.Time) (Transaction, error) {
	if len(lines) == 0 {
		return Transaction{}, ErrEmptyCart
	}
	return Transaction{
		ID:         uuid.New(),
		CreatedAt:  now,
		CustomerID: customerID,
		Lines:      lines,
		Shares:     shares,
		Totals:     t,
		Status:     StatusDraft,
		Notes:      notes,
	}, nil
}

// Void cancels a draft. Voided is terminal.
func Void(tx Transaction) (Transaction, error) {
	if tx.Status != StatusDraft {
		return Transaction{}, fmt.Errorf("void %s transaction: %w", tx.Status, ErrInvalidTransition)
	}
	tx.Status = StatusVoided
	return tx, nil
}

// Refund flips a completed transaction to refunded. The financial reversal is
// realized by shift aggregation, which counts refunded transactions as
// negative gross; no reversing payments are computed here.
func Refund(tx Transaction) (Transaction, error) {
	if tx.Status != StatusCompleted {
		return Transaction{}, fmt.Errorf("refund %s transaction: %w", tx.Status, ErrInvalidTransition)
	}
	tx.Status = StatusRefunded
	return tx, nil
}
