package totals

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fluxretail/backend-pos/internal/money"
)

// LineItem is one cart line as supplied by the caller. OriginalTax is the tax
// amount the catalog attributes to the undiscounted line; the calculator never
// owns tax-rate policy, it only scales that amount as discounts shrink the
// taxable base.
type LineItem struct {
	ProductID   uuid.UUID       `json:"productId"`
	Name        string          `json:"name"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPrice   money.Money     `json:"unitPrice"`
	OriginalTax money.Money     `json:"originalTax"`
}

// Gross returns unit price times quantity, rounded half-up once. Non-positive
// quantities or prices contribute nothing.
func (li LineItem) Gross() money.Money {
	if li.Qty.Sign() <= 0 || li.UnitPrice <= 0 {
		return 0
	}
	return money.MulQty(li.UnitPrice, li.Qty)
}

// CartTotals aggregates the computed pricing components.
type CartTotals struct {
	Subtotal      money.Money `json:"subtotal"`
	DiscountTotal money.Money `json:"discountTotal"`
	TaxTotal      money.Money `json:"taxTotal"`
	GrandTotal    money.Money `json:"grandTotal"`
}

// Compute calculates cart totals for the lines under the given discount mode.
func Compute(lines []LineItem, mode DiscountMode) (CartTotals, error) {
	if err := mode.Validate(); err != nil {
		return CartTotals{}, err
	}

	var out CartTotals
	var rawTax money.Money
	for _, li := range lines {
		gross := li.Gross()
		out.Subtotal += gross
		if gross == 0 {
			continue
		}
		rawTax += li.OriginalTax

		if mode.IsPerLine() {
			d, ok := mode.LineDiscount(li.ProductID)
			if !ok {
				out.TaxTotal += li.OriginalTax
				continue
			}
			disc := d.amountFor(gross)
			out.DiscountTotal += disc
			taxable := gross.SubClamped(disc)
			out.TaxTotal += money.Ratio(li.OriginalTax, taxable, gross)
		}
	}

	switch {
	case mode.IsBill():
		bill, _ := mode.BillDiscount()
		out.DiscountTotal = bill.amountFor(out.Subtotal)
		taxable := out.Subtotal.SubClamped(out.DiscountTotal)
		out.TaxTotal = money.Ratio(rawTax, taxable, out.Subtotal)
	case mode.IsNone():
		out.TaxTotal = rawTax
	}

	out.GrandTotal = out.Subtotal.SubClamped(out.DiscountTotal) + out.TaxTotal
	return out, nil
}
