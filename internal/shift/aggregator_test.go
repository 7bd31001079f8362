package shift_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fluxretail/backend-pos/internal/money"
	"github.com/fluxretail/backend-pos/internal/settlement"
	"github.com/fluxretail/backend-pos/internal/shift"
	"github.com/fluxretail/backend-pos/internal/totals"
)

var shiftStart = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func openShift() *shift.Session {
	return &shift.Session{
		ID:           uuid.New(),
		StartTime:    shiftStart,
		StartingCash: 10000,
		Status:       shift.StatusOpen,
	}
}

func completedTx(at time.Time, grand, tax money.Money, payments ...settlement.PaymentRecord) settlement.Transaction {
	return settlement.Transaction{
		ID:        uuid.New(),
		CreatedAt: at,
		Totals:    totals.CartTotals{Subtotal: grand, GrandTotal: grand, TaxTotal: tax},
		Payments:  payments,
		Status:    settlement.StatusCompleted,
	}
}

func TestAggregateRequiresShift(t *testing.T) {
	_, err := shift.Aggregate(nil, nil, time.Now())
	require.ErrorIs(t, err, shift.ErrNoShift)
}

func TestAggregateNetSales(t *testing.T) {
	sess := openShift()
	at := shiftStart.Add(time.Hour)

	sale := completedTx(at, 763, 63, settlement.PaymentRecord{Method: settlement.MethodCash, Amount: 763})
	sale.PrimaryMethod = settlement.MethodCash

	refund := completedTx(at.Add(time.Minute), 200, 20, settlement.PaymentRecord{Method: settlement.MethodCard, Amount: 200})
	refund.Status = settlement.StatusRefunded

	report, err := shift.Aggregate(sess, []settlement.Transaction{sale, refund}, at.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, report.TransactionCount)
	require.Equal(t, money.Money(763), report.GrossSales)
	require.Equal(t, money.Money(200), report.ReturnsTotal)
	require.Equal(t, money.Money(563), report.NetSales)
	require.Equal(t, money.Money(43), report.TaxCollected)
	require.Equal(t, report.NetSales, report.GrossSales-report.ReturnsTotal)
	require.Equal(t, money.Money(763), report.PaymentTotals.Cash)
	require.Equal(t, money.Money(-200), report.PaymentTotals.Card)
}

func TestAggregateWindowExcludesOutside(t *testing.T) {
	sess := openShift()
	endedAt := shiftStart.Add(8 * time.Hour)
	sess.EndTime = &endedAt
	sess.Status = shift.StatusClosed

	inside := completedTx(shiftStart.Add(time.Hour), 100, 0)
	before := completedTx(shiftStart.Add(-time.Hour), 100, 0)
	after := completedTx(endedAt.Add(time.Hour), 100, 0)

	report, err := shift.Aggregate(sess, []settlement.Transaction{inside, before, after}, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, report.TransactionCount)
	require.Equal(t, money.Money(100), report.GrossSales)
}

func TestPaymentDistributionWithChange(t *testing.T) {
	sess := openShift()
	at := shiftStart.Add(time.Hour)

	// 10.00 cash tendered against a 7.63 sale: only 7.63 hits the drawer.
	sale := completedTx(at, 763, 0, settlement.PaymentRecord{Method: settlement.MethodCash, Amount: 1000})
	sale.AmountPaid = 1000
	sale.ChangeGiven = 237

	report, err := shift.Aggregate(sess, []settlement.Transaction{sale}, at.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, money.Money(763), report.PaymentTotals.Cash)
}

func TestPaymentDistributionBuckets(t *testing.T) {
	sess := openShift()
	at := shiftStart.Add(time.Hour)

	sale := completedTx(at, 1000, 0,
		settlement.PaymentRecord{Method: settlement.MethodCash, Amount: 400},
		settlement.PaymentRecord{Method: settlement.MethodBankTransfer, Amount: 300},
		settlement.PaymentRecord{Method: settlement.MethodStoreCredit, Amount: 300},
	)
	sale.PrimaryMethod = settlement.MethodSplit

	report, err := shift.Aggregate(sess, []settlement.Transaction{sale}, at.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, money.Money(400), report.PaymentTotals.Cash)
	// Bank transfer collapses into the card bucket.
	require.Equal(t, money.Money(300), report.PaymentTotals.Card)
	require.Equal(t, money.Money(300), report.PaymentTotals.StoreCredit)
}

func TestTrailingZeroPaymentStillConserved(t *testing.T) {
	sess := openShift()
	at := shiftStart.Add(time.Hour)

	// A zero-amount trailing record (partial legacy data) must not eat the
	// rounding remainder: the buckets still sum to the grand total.
	sale := completedTx(at, 1001, 0,
		settlement.PaymentRecord{Method: settlement.MethodCash, Amount: 334},
		settlement.PaymentRecord{Method: settlement.MethodCard, Amount: 667},
		settlement.PaymentRecord{Method: settlement.MethodCard, Amount: 0},
	)
	sale.PrimaryMethod = settlement.MethodSplit

	report, err := shift.Aggregate(sess, []settlement.Transaction{sale}, at.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, report.GrossSales, report.PaymentTotals.Cash+report.PaymentTotals.Card)
}

func TestLegacySplitFallsBackToEvenSplit(t *testing.T) {
	sess := openShift()
	at := shiftStart.Add(time.Hour)

	legacy := completedTx(at, 763, 0)
	legacy.PrimaryMethod = settlement.MethodSplit

	report, err := shift.Aggregate(sess, []settlement.Transaction{legacy}, at.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, money.Money(382), report.PaymentTotals.Cash)
	require.Equal(t, money.Money(381), report.PaymentTotals.Card)
	require.Equal(t, report.GrossSales, report.PaymentTotals.Cash+report.PaymentTotals.Card)
}

func TestMalformedTransactionsAreSkippedNotFatal(t *testing.T) {
	sess := openShift()
	at := shiftStart.Add(time.Hour)

	broken := settlement.Transaction{CreatedAt: at, Status: settlement.StatusCompleted}
	ok := completedTx(at, 500, 50, settlement.PaymentRecord{Method: settlement.MethodCash, Amount: 500})

	report, err := shift.Aggregate(sess, []settlement.Transaction{broken, ok}, at.Add(time.Hour))
	require.NoError(t, err)
	// The zero-value transaction contributes nothing but still counts as a
	// completed sale; the report always renders.
	require.Equal(t, 2, report.TransactionCount)
	require.Equal(t, money.Money(500), report.GrossSales)
}

func TestTopItemsRankingAndTies(t *testing.T) {
	sess := openShift()
	at := shiftStart.Add(time.Hour)

	mk := func(name string, qty string) totals.LineItem {
		return totals.LineItem{
			ProductID: uuid.New(),
			Name:      name,
			Qty:       decimal.RequireFromString(qty),
			UnitPrice: 100,
		}
	}
	tx1 := completedTx(at, 100, 0)
	tx1.Lines = []totals.LineItem{mk("latte", "2"), mk("espresso", "3"), mk("bagel", "1")}
	tx2 := completedTx(at.Add(time.Minute), 100, 0)
	tx2.Lines = []totals.LineItem{mk("croissant", "3"), mk("latte", "1"), mk("scone", "1"), mk("muffin", "1")}

	report, err := shift.Aggregate(sess, []settlement.Transaction{tx1, tx2}, at.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, report.TopItems, shift.TopItemLimit)

	names := make([]string, 0, len(report.TopItems))
	for _, item := range report.TopItems {
		names = append(names, item.Name)
	}
	// espresso and latte and croissant all hit 3; first-seen order wins ties.
	require.Equal(t, []string{"latte", "espresso", "croissant", "bagel", "scone"}, names)
	require.True(t, report.TopItems[0].Qty.Equal(decimal.NewFromInt(3)))
}
