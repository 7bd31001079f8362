package totals

import (
	"github.com/google/uuid"

	"github.com/fluxretail/backend-pos/internal/money"
)

// LineShare is one line's slice of the cart totals. Downstream storage records
// discount and tax per line, so a bill discount must be spread across the
// lines in proportion to their share of the subtotal.
type LineShare struct {
	ProductID uuid.UUID   `json:"productId"`
	Gross     money.Money `json:"gross"`
	Discount  money.Money `json:"discount"`
	Tax       money.Money `json:"tax"`
}

// Distribute produces per-line shares consistent with Compute. For a bill
// discount the per-line allocations sum back to the cart's discount total
// within one minor unit: the last contributing line absorbs the rounding
// remainder, clamped at its own gross.
func Distribute(lines []LineItem, mode DiscountMode) ([]LineShare, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	shares := make([]LineShare, len(lines))
	var subtotal money.Money
	lastContributing := -1
	for i, li := range lines {
		gross := li.Gross()
		shares[i] = LineShare{ProductID: li.ProductID, Gross: gross}
		subtotal += gross
		if gross > 0 {
			lastContributing = i
		}
	}

	switch {
	case mode.IsPerLine():
		for i, li := range lines {
			if shares[i].Gross == 0 {
				continue
			}
			if d, ok := mode.LineDiscount(li.ProductID); ok {
				shares[i].Discount = d.amountFor(shares[i].Gross)
			}
			taxable := shares[i].Gross.SubClamped(shares[i].Discount)
			shares[i].Tax = money.Ratio(li.OriginalTax, taxable, shares[i].Gross)
		}
	case mode.IsBill():
		bill, _ := mode.BillDiscount()
		total := bill.amountFor(subtotal)
		var allocated money.Money
		for i, li := range lines {
			if shares[i].Gross == 0 {
				continue
			}
			part := money.Ratio(total, shares[i].Gross, subtotal)
			if i == lastContributing {
				part = money.Min(total.SubClamped(allocated), shares[i].Gross)
			}
			shares[i].Discount = part
			allocated += part
			taxable := shares[i].Gross.SubClamped(part)
			shares[i].Tax = money.Ratio(li.OriginalTax, taxable, shares[i].Gross)
		}
	default:
		for i, li := range lines {
			if shares[i].Gross == 0 {
				continue
			}
			shares[i].Tax = li.OriginalTax
		}
	}
	return shares, nil
}
