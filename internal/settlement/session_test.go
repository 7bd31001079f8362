package settlement_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fluxretail/backend-pos/internal/money"
	"github.com/fluxretail/backend-pos/internal/settlement"
	"github.com/fluxretail/backend-pos/internal/totals"
)

func cartFixture(t *testing.T) ([]totals.LineItem, totals.CartTotals) {
	t.Helper()
	lines := []totals.LineItem{{
		ProductID:   uuid.New(),
		Name:        "americano",
		Qty:         decimal.NewFromInt(2),
		UnitPrice:   350,
		OriginalTax: 70,
	}}
	mode := totals.Bill(totals.Discount{Kind: totals.DiscountPercent, PercentBps: 1000})
	tot, err := totals.Compute(lines, mode)
	require.NoError(t, err)
	// 700 gross, 70 bill discount, 63 tax on the discounted base.
	require.Equal(t, money.Money(693), tot.GrandTotal)
	return lines, tot
}

func TestSplitTenderSettles(t *testing.T) {
	lines, tot := cartFixture(t)
	sess := settlement.Start(lines, nil, tot, nil)

	require.NoError(t, sess.AddPayment(settlement.MethodCash, 500))
	require.False(t, sess.IsSettled())
	require.Equal(t, money.Money(193), sess.RemainingDue())

	require.NoError(t, sess.AddPayment(settlement.MethodCard, 193))
	require.True(t, sess.IsSettled())
	require.Equal(t, money.Money(0), sess.ChangeDue())

	// Remaining due is zero, so any further card tender must be rejected
	// without mutating the session.
	err := sess.AddPayment(settlement.MethodCard, 1)
	require.ErrorIs(t, err, settlement.ErrInvalidPayment)
	require.Len(t, sess.Payments(), 2)
	require.Equal(t, money.Money(693), sess.TotalPaid())

	tx, err := sess.Finalize(time.Now())
	require.NoError(t, err)
	require.Equal(t, settlement.MethodSplit, tx.PrimaryMethod)
	require.Equal(t, settlement.StatusCompleted, tx.Status)
	require.Equal(t, money.Money(693), tx.AmountPaid)
	require.Equal(t, money.Money(0), tx.ChangeGiven)
}

func TestCashOverpaymentMakesChange(t *testing.T) {
	lines, tot := cartFixture(t)
	sess := settlement.Start(lines, nil, tot, nil)

	require.NoError(t, sess.AddPayment(settlement.MethodCash, 1000))
	require.True(t, sess.IsSettled())
	require.Equal(t, money.Money(307), sess.ChangeDue())

	tx, err := sess.Finalize(time.Now())
	require.NoError(t, err)
	require.Equal(t, settlement.MethodCash, tx.PrimaryMethod)
	require.Equal(t, money.Money(307), tx.ChangeGiven)
}

func TestNonCashCannotExceedDue(t *testing.T) {
	lines, tot := cartFixture(t)

	for _, m := range []settlement.PaymentMethod{
		settlement.MethodCard,
		settlement.MethodBankTransfer,
		settlement.MethodStoreCredit,
		settlement.MethodOther,
	} {
		sess := settlement.Start(lines, nil, tot, nil)
		err := sess.AddPayment(m, tot.GrandTotal+1)
		require.ErrorIs(t, err, settlement.ErrInvalidPayment, string(m))
		require.Empty(t, sess.Payments())
	}
}

func TestRejectsBadPayments(t *testing.T) {
	lines, tot := cartFixture(t)
	sess := settlement.Start(lines, nil, tot, nil)

	require.ErrorIs(t, sess.AddPayment(settlement.MethodCash, 0), settlement.ErrInvalidPayment)
	require.ErrorIs(t, sess.AddPayment(settlement.MethodCash, -5), settlement.ErrInvalidPayment)
	require.ErrorIs(t, sess.AddPayment(settlement.MethodSplit, 100), settlement.ErrInvalidPayment)
	require.ErrorIs(t, sess.AddPayment("voucher", 100), settlement.ErrInvalidPayment)
}

func TestIsSettledToleratesOneMinorUnit(t *testing.T) {
	lines, tot := cartFixture(t)
	sess := settlement.Start(lines, nil, tot, nil)
	require.NoError(t, sess.AddPayment(settlement.MethodCard, tot.GrandTotal-1))
	require.True(t, sess.IsSettled())

	short := settlement.Start(lines, nil, tot, nil)
	require.NoError(t, short.AddPayment(settlement.MethodCard, tot.GrandTotal-2))
	require.False(t, short.IsSettled())
}

func TestFinalizeIncomplete(t *testing.T) {
	lines, tot := cartFixture(t)

	sess := settlement.Start(lines, nil, tot, nil)
	_, err := sess.Finalize(time.Now())
	require.ErrorIs(t, err, settlement.ErrIncompleteSettlement)

	empty := settlement.Start(nil, nil, totals.CartTotals{}, nil)
	_, err = empty.Finalize(time.Now())
	require.ErrorIs(t, err, settlement.ErrEmptyCart)
}

func TestHoldRequiresLines(t *testing.T) {
	lines, tot := cartFixture(t)
	now := time.Now()

	tx, err := settlement.Hold(lines, nil, tot, nil, nil, now)
	require.NoError(t, err)
	require.Equal(t, settlement.StatusDraft, tx.Status)
	require.Empty(t, tx.Payments)
	require.Equal(t, now, tx.CreatedAt)

	_, err = settlement.Hold(nil, nil, tot, nil, nil, now)
	require.ErrorIs(t, err, settlement.ErrEmptyCart)
}

func TestLifecycleTransitions(t *testing.T) {
	lines, tot := cartFixture(t)
	now := time.Now()

	draft, err := settlement.Hold(lines, nil, tot, nil, nil, now)
	require.NoError(t, err)

	voided, err := settlement.Void(draft)
	require.NoError(t, err)
	require.Equal(t, settlement.StatusVoided, voided.Status)

	// Voided is terminal.
	_, err = settlement.Void(voided)
	require.ErrorIs(t, err, settlement.ErrInvalidTransition)
	_, err = settlement.Refund(voided)
	require.ErrorIs(t, err, settlement.ErrInvalidTransition)

	sess := settlement.Start(lines, nil, tot, nil)
	require.NoError(t, sess.AddPayment(settlement.MethodCash, 693))
	completed, err := sess.Finalize(now)
	require.NoError(t, err)

	// Completed cannot be voided, only refunded.
	_, err = settlement.Void(completed)
	require.ErrorIs(t, err, settlement.ErrInvalidTransition)

	refunded, err := settlement.Refund(completed)
	require.NoError(t, err)
	require.Equal(t, settlement.StatusRefunded, refunded.Status)

	_, err = settlement.Refund(refunded)
	require.ErrorIs(t, err, settlement.ErrInvalidTransition)
}
