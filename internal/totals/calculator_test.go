package totals_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fluxretail/backend-pos/internal/money"
	"github.com/fluxretail/backend-pos/internal/totals"
)

func line(id uuid.UUID, qty string, unitPrice, tax money.Money) totals.LineItem {
	return totals.LineItem{
		ProductID:   id,
		Qty:         decimal.RequireFromString(qty),
		UnitPrice:   unitPrice,
		OriginalTax: tax,
	}
}

func TestComputeNoDiscount(t *testing.T) {
	// Two units at 3.50 with 0.70 tax on the line.
	lines := []totals.LineItem{line(uuid.New(), "2", 350, 70)}
	got, err := totals.Compute(lines, totals.NoDiscount())
	require.NoError(t, err)
	require.Equal(t, money.Money(700), got.Subtotal)
	require.Equal(t, money.Money(0), got.DiscountTotal)
	require.Equal(t, money.Money(70), got.TaxTotal)
	require.Equal(t, money.Money(770), got.GrandTotal)
}

func TestComputeBillDiscountScalesTax(t *testing.T) {
	// Same cart with a 10% bill discount: tax drops to 0.70 * 0.9 = 0.63.
	lines := []totals.LineItem{line(uuid.New(), "2", 350, 70)}
	mode := totals.Bill(totals.Discount{Kind: totals.DiscountPercent, PercentBps: 1000})
	got, err := totals.Compute(lines, mode)
	require.NoError(t, err)
	require.Equal(t, money.Money(700), got.Subtotal)
	require.Equal(t, money.Money(70), got.DiscountTotal)
	require.Equal(t, money.Money(63), got.TaxTotal)
	// Grand total honors subtotal - discount + tax: 700 - 70 + 63.
	require.Equal(t, money.Money(693), got.GrandTotal)
}

func TestComputeLineDiscounts(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	lines := []totals.LineItem{
		line(a, "1", 1000, 100),
		line(b, "3", 200, 60),
	}
	mode := totals.PerLine(map[uuid.UUID]totals.Discount{
		a: {Kind: totals.DiscountPercent, PercentBps: 5000}, // 50% off line a
	})
	got, err := totals.Compute(lines, mode)
	require.NoError(t, err)
	require.Equal(t, money.Money(1600), got.Subtotal)
	require.Equal(t, money.Money(500), got.DiscountTotal)
	// Line a tax halves with its taxable base, line b keeps full tax.
	require.Equal(t, money.Money(110), got.TaxTotal)
	require.Equal(t, money.Money(1210), got.GrandTotal)
}

func TestFixedDiscountClampsAtBase(t *testing.T) {
	id := uuid.New()
	lines := []totals.LineItem{line(id, "1", 500, 50)}
	mode := totals.PerLine(map[uuid.UUID]totals.Discount{
		id: {Kind: totals.DiscountFixed, Amount: 900},
	})
	got, err := totals.Compute(lines, mode)
	require.NoError(t, err)
	require.Equal(t, money.Money(500), got.DiscountTotal)
	require.Equal(t, money.Money(0), got.TaxTotal)
	require.Equal(t, money.Money(0), got.GrandTotal)
}

func TestInvalidDiscountInput(t *testing.T) {
	lines := []totals.LineItem{line(uuid.New(), "1", 500, 0)}

	_, err := totals.Compute(lines, totals.Bill(totals.Discount{Kind: totals.DiscountPercent, PercentBps: 10500}))
	require.ErrorIs(t, err, totals.ErrInvalidDiscount)

	_, err = totals.Compute(lines, totals.Bill(totals.Discount{Kind: totals.DiscountFixed, Amount: -1}))
	require.ErrorIs(t, err, totals.ErrInvalidDiscount)

	_, err = totals.Compute(lines, totals.Bill(totals.Discount{Kind: "bogus"}))
	require.ErrorIs(t, err, totals.ErrInvalidDiscount)
}

func TestZeroLinesNeverDivide(t *testing.T) {
	lines := []totals.LineItem{
		line(uuid.New(), "0", 500, 50),
		line(uuid.New(), "2", 0, 10),
	}
	mode := totals.Bill(totals.Discount{Kind: totals.DiscountPercent, PercentBps: 1000})
	got, err := totals.Compute(lines, mode)
	require.NoError(t, err)
	require.Equal(t, totals.CartTotals{}, got)
}

func TestComputeIsIdempotent(t *testing.T) {
	lines := []totals.LineItem{
		line(uuid.New(), "1.5", 333, 50),
		line(uuid.New(), "2", 129, 26),
	}
	mode := totals.Bill(totals.Discount{Kind: totals.DiscountPercent, PercentBps: 750})
	first, err := totals.Compute(lines, mode)
	require.NoError(t, err)
	second, err := totals.Compute(lines, mode)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestComputeNonNegative(t *testing.T) {
	lines := []totals.LineItem{line(uuid.New(), "1", 100, 10)}
	mode := totals.Bill(totals.Discount{Kind: totals.DiscountFixed, Amount: 100_000})
	got, err := totals.Compute(lines, mode)
	require.NoError(t, err)
	require.Equal(t, money.Money(100), got.DiscountTotal)
	require.GreaterOrEqual(t, int64(got.GrandTotal), int64(0))
	require.LessOrEqual(t, int64(got.DiscountTotal), int64(got.Subtotal))
}

func TestCartDiscountExclusivity(t *testing.T) {
	a := uuid.New()
	cart := totals.NewCart()
	cart.AddLine(line(a, "2", 350, 70))

	require.NoError(t, cart.SetLineDiscount(a, totals.Discount{Kind: totals.DiscountFixed, Amount: 100}))
	require.True(t, cart.Mode().IsPerLine())

	require.NoError(t, cart.SetBillDiscount(totals.Discount{Kind: totals.DiscountPercent, PercentBps: 1000}))
	require.True(t, cart.Mode().IsBill())
	_, hasLine := cart.Mode().LineDiscount(a)
	require.False(t, hasLine)

	require.NoError(t, cart.SetLineDiscount(a, totals.Discount{Kind: totals.DiscountFixed, Amount: 100}))
	require.True(t, cart.Mode().IsPerLine())
	_, hasBill := cart.Mode().BillDiscount()
	require.False(t, hasBill)

	cart.ClearDiscounts()
	require.True(t, cart.Mode().IsNone())
}

func TestDistributeConservesBillDiscount(t *testing.T) {
	lines := []totals.LineItem{
		line(uuid.New(), "1", 333, 33),
		line(uuid.New(), "1", 333, 33),
		line(uuid.New(), "1", 334, 34),
	}
	mode := totals.Bill(totals.Discount{Kind: totals.DiscountFixed, Amount: 100})
	shares, err := totals.Distribute(lines, mode)
	require.NoError(t, err)
	require.Len(t, shares, 3)

	cartTotals, err := totals.Compute(lines, mode)
	require.NoError(t, err)

	var discSum, taxSum money.Money
	for _, s := range shares {
		discSum += s.Discount
		taxSum += s.Tax
	}
	require.InDelta(t, int64(cartTotals.DiscountTotal), int64(discSum), 1)
	require.InDelta(t, int64(cartTotals.TaxTotal), int64(taxSum), 1)
}

func TestDistributeSkipsZeroGrossLines(t *testing.T) {
	zero := line(uuid.New(), "0", 500, 50)
	paid := line(uuid.New(), "1", 500, 50)
	mode := totals.Bill(totals.Discount{Kind: totals.DiscountPercent, PercentBps: 2000})
	shares, err := totals.Distribute([]totals.LineItem{zero, paid}, mode)
	require.NoError(t, err)
	require.Equal(t, money.Money(0), shares[0].Discount)
	require.Equal(t, money.Money(0), shares[0].Tax)
	require.Equal(t, money.Money(100), shares[1].Discount)
	require.Equal(t, money.Money(40), shares[1].Tax)
}
