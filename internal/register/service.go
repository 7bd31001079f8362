// Package register orchestrates the point of sale: it builds carts from
// catalog quotes, computes totals, settles payments, and persists the result.
package register

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fluxretail/backend-pos/internal/catalog"
	"github.com/fluxretail/backend-pos/internal/directory"
	"github.com/fluxretail/backend-pos/internal/events"
	"github.com/fluxretail/backend-pos/internal/ledger"
	"github.com/fluxretail/backend-pos/internal/money"
	"github.com/fluxretail/backend-pos/internal/obs"
	"github.com/fluxretail/backend-pos/internal/settlement"
	"github.com/fluxretail/backend-pos/internal/totals"
)

// ErrLineInput is returned for malformed line input (unknown product, bad qty).
var ErrLineInput = errors.New("register: invalid line input")

// Catalog is the product quote contract.
type Catalog interface {
	Quote(ctx context.Context, id uuid.UUID) (catalog.Product, error)
	InvalidateQuote(ctx context.Context, ids ...uuid.UUID)
}

// Directory resolves customers attached to a sale.
type Directory interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (directory.Customer, error)
}

// Ledger is the persistence contract the register writes through.
type Ledger interface {
	SaveDraft(ctx context.Context, t settlement.Transaction) error
	SaveCompleted(ctx context.Context, t settlement.Transaction, decrements []ledger.StockDecrement) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to settlement.Status) error
	GetTransaction(ctx context.Context, id uuid.UUID) (settlement.Transaction, error)
	ListTransactions(ctx context.Context, limit, offset int32) ([]settlement.Transaction, int64, error)
}

// DiscountInput is one discount in request form.
type DiscountInput struct {
	Kind       string      `json:"kind" validate:"required,oneof=percent fixed"`
	PercentBps int32       `json:"percentBps,omitempty" validate:"gte=0,lte=10000"`
	Amount     money.Money `json:"amount,omitempty" validate:"gte=0"`
}

// LineInput is one requested line.
type LineInput struct {
	ProductID uuid.UUID      `json:"productId" validate:"required"`
	Qty       string         `json:"qty" validate:"required"`
	Discount  *DiscountInput `json:"discount,omitempty"`
}

// PaymentInput is one tendered amount.
type PaymentInput struct {
	Method string      `json:"method" validate:"required"`
	Amount money.Money `json:"amount" validate:"required,gt=0"`
}

// SaleInput is the full request for quote, hold, and complete operations.
type SaleInput struct {
	Lines        []LineInput    `json:"lines" validate:"required,min=1,dive"`
	BillDiscount *DiscountInput `json:"billDiscount,omitempty"`
	CustomerID   *uuid.UUID     `json:"customerId,omitempty"`
	Payments     []PaymentInput `json:"payments,omitempty" validate:"dive"`
	Notes        *string        `json:"notes,omitempty"`
}

// QuoteResult carries the computed totals before any payment is taken.
type QuoteResult struct {
	Lines  []totals.LineItem  `json:"lines"`
	Shares []totals.LineShare `json:"shares,omitempty"`
	Totals totals.CartTotals  `json:"totals"`
}

// Service wires the register flow together.
type Service struct {
	Catalog   Catalog
	Directory Directory
	Ledger    Ledger
	Bus       *events.Bus
	Now       func() time.Time
	Log       zerolog.Logger
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

type builtCart struct {
	lines      []totals.LineItem
	mode       totals.DiscountMode
	decrements []ledger.StockDecrement
}

func toDiscount(in DiscountInput) totals.Discount {
	return totals.Discount{Kind: in.Kind, PercentBps: in.PercentBps, Amount: in.Amount}
}

// buildCart turns request lines into priced LineItems. Tax is derived from the
// product's rate against the line gross before any discount.
func (s Service) buildCart(ctx context.Context, in SaleInput) (builtCart, error) {
	var cart builtCart
	lineDiscounts := make(map[uuid.UUID]totals.Discount)
	seen := make(map[uuid.UUID]bool, len(in.Lines))
	for _, li := range in.Lines {
		// Lines, discounts, and persisted shares are all keyed by product,
		// so a product may appear on at most one line.
		if seen[li.ProductID] {
			return builtCart{}, fmt.Errorf("duplicate line for product %s: %w", li.ProductID, ErrLineInput)
		}
		seen[li.ProductID] = true
		qty, err := decimal.NewFromString(li.Qty)
		if err != nil || qty.Sign() <= 0 {
			return builtCart{}, fmt.Errorf("qty %q for product %s: %w", li.Qty, li.ProductID, ErrLineInput)
		}
		p, err := s.Catalog.Quote(ctx, li.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return builtCart{}, fmt.Errorf("product %s: %w", li.ProductID, ErrLineInput)
			}
			return builtCart{}, err
		}
		line := totals.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Qty:       qty,
			UnitPrice: p.UnitPrice,
		}
		line.OriginalTax = money.PercentOf(line.Gross(), p.TaxBps)
		cart.lines = append(cart.lines, line)
		cart.decrements = append(cart.decrements, ledger.StockDecrement{ProductID: p.ID, Qty: qty})
		if li.Discount != nil {
			lineDiscounts[p.ID] = toDiscount(*li.Discount)
		}
	}
	switch {
	case in.BillDiscount != nil && len(lineDiscounts) > 0:
		return builtCart{}, fmt.Errorf("bill and line discounts are mutually exclusive: %w", totals.ErrInvalidDiscount)
	case in.BillDiscount != nil:
		cart.mode = totals.Bill(toDiscount(*in.BillDiscount))
	case len(lineDiscounts) > 0:
		cart.mode = totals.PerLine(lineDiscounts)
	default:
		cart.mode = totals.NoDiscount()
	}
	return cart, nil
}

func (s Service) resolveCustomer(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	_, err := s.Directory.GetCustomer(ctx, *id)
	return err
}

// Quote prices a cart without persisting anything.
func (s Service) Quote(ctx context.Context, in SaleInput) (QuoteResult, error) {
	cart, err := s.buildCart(ctx, in)
	if err != nil {
		return QuoteResult{}, err
	}
	t, err := totals.Compute(cart.lines, cart.mode)
	if err != nil {
		return QuoteResult{}, err
	}
	shares, err := totals.Distribute(cart.lines, cart.mode)
	if err != nil {
		return QuoteResult{}, err
	}
	return QuoteResult{Lines: cart.lines, Shares: shares, Totals: t}, nil
}

// CompleteSale prices the cart, settles the supplied payments, and persists
// the completed transaction together with its stock decrements.
func (s Service) CompleteSale(ctx context.Context, in SaleInput) (settlement.Transaction, error) {
	if err := s.resolveCustomer(ctx, in.CustomerID); err != nil {
		return settlement.Transaction{}, err
	}
	cart, err := s.buildCart(ctx, in)
	if err != nil {
		return settlement.Transaction{}, err
	}
	t, err := totals.Compute(cart.lines, cart.mode)
	if err != nil {
		return settlement.Transaction{}, err
	}
	shares, err := totals.Distribute(cart.lines, cart.mode)
	if err != nil {
		return settlement.Transaction{}, err
	}
	sess := settlement.Start(cart.lines, shares, t, in.CustomerID)
	for _, p := range in.Payments {
		if err := sess.AddPayment(settlement.PaymentMethod(p.Method), p.Amount); err != nil {
			return settlement.Transaction{}, err
		}
	}
	tx, err := sess.Finalize(s.now())
	if err != nil {
		return settlement.Transaction{}, err
	}
	tx.Notes = in.Notes
	if err := s.Ledger.SaveCompleted(ctx, tx, cart.decrements); err != nil {
		return settlement.Transaction{}, err
	}
	if obs.SalesCompletedTotal != nil {
		obs.SalesCompletedTotal.WithLabelValues(string(tx.PrimaryMethod)).Inc()
	}
	if obs.SaleAmount != nil {
		obs.SaleAmount.Observe(float64(tx.Totals.GrandTotal))
	}
	s.Catalog.InvalidateQuote(ctx, productIDs(cart.decrements)...)
	s.emit(ctx, events.TopicTransactionCompleted, tx)
	return tx, nil
}

// HoldSale prices the cart and parks it as a draft. Stock is untouched until
// the sale completes.
func (s Service) HoldSale(ctx context.Context, in SaleInput) (settlement.Transaction, error) {
	if err := s.resolveCustomer(ctx, in.CustomerID); err != nil {
		return settlement.Transaction{}, err
	}
	cart, err := s.buildCart(ctx, in)
	if err != nil {
		return settlement.Transaction{}, err
	}
	t, err := totals.Compute(cart.lines, cart.mode)
	if err != nil {
		return settlement.Transaction{}, err
	}
	shares, err := totals.Distribute(cart.lines, cart.mode)
	if err != nil {
		return settlement.Transaction{}, err
	}
	tx, err := settlement.Hold(cart.lines, shares, t, in.CustomerID, in.Notes, s.now())
	if err != nil {
		return settlement.Transaction{}, err
	}
	if err := s.Ledger.SaveDraft(ctx, tx); err != nil {
		return settlement.Transaction{}, err
	}
	return tx, nil
}

// Void cancels a held draft.
func (s Service) Void(ctx context.Context, id uuid.UUID) (settlement.Transaction, error) {
	tx, err := s.Ledger.GetTransaction(ctx, id)
	if err != nil {
		return settlement.Transaction{}, err
	}
	voided, err := settlement.Void(tx)
	if err != nil {
		return settlement.Transaction{}, err
	}
	if err := s.Ledger.UpdateStatus(ctx, id, settlement.StatusDraft, settlement.StatusVoided); err != nil {
		return settlement.Transaction{}, err
	}
	if obs.SalesVoidedTotal != nil {
		obs.SalesVoidedTotal.Inc()
	}
	s.emit(ctx, events.TopicTransactionVoided, voided)
	return voided, nil
}

// Refund reverses a completed sale. Stock restoration happens inside the
// ledger's status update.
func (s Service) Refund(ctx context.Context, id uuid.UUID) (settlement.Transaction, error) {
	tx, err := s.Ledger.GetTransaction(ctx, id)
	if err != nil {
		return settlement.Transaction{}, err
	}
	refunded, err := settlement.Refund(tx)
	if err != nil {
		return settlement.Transaction{}, err
	}
	if err := s.Ledger.UpdateStatus(ctx, id, settlement.StatusCompleted, settlement.StatusRefunded); err != nil {
		return settlement.Transaction{}, err
	}
	if obs.SalesRefundedTotal != nil {
		obs.SalesRefundedTotal.Inc()
	}
	s.Catalog.InvalidateQuote(ctx, lineProductIDs(refunded.Lines)...)
	s.emit(ctx, events.TopicTransactionRefunded, refunded)
	return refunded, nil
}

// Get loads one transaction.
func (s Service) Get(ctx context.Context, id uuid.UUID) (settlement.Transaction, error) {
	return s.Ledger.GetTransaction(ctx, id)
}

// List pages through transaction history.
func (s Service) List(ctx context.Context, limit, offset int32) ([]settlement.Transaction, int64, error) {
	return s.Ledger.ListTransactions(ctx, limit, offset)
}

type txEventPayload struct {
	TransactionID uuid.UUID   `json:"transactionId"`
	GrandTotal    money.Money `json:"grandTotal"`
	Status        string      `json:"status"`
}

func (s Service) emit(ctx context.Context, topic string, tx settlement.Transaction) {
	if s.Bus == nil {
		return
	}
	_, err := s.Bus.Emit(ctx, topic, tx.ID, txEventPayload{
		TransactionID: tx.ID,
		GrandTotal:    tx.Totals.GrandTotal,
		Status:        string(tx.Status),
	})
	if err != nil {
		s.Log.Warn().Err(err).Str("topic", topic).Stringer("transaction_id", tx.ID).Msg("event emit failed")
	}
}

func productIDs(decs []ledger.StockDecrement) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(decs))
	for _, d := range decs {
		out = append(out, d.ProductID)
	}
	return out
}

func lineProductIDs(lines []totals.LineItem) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(lines))
	for _, li := range lines {
		out = append(out, li.ProductID)
	}
	return out
}
