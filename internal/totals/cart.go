package totals

import "github.com/google/uuid"

// Cart accumulates line items while a sale is rung up. The discount mode field
// makes line and bill discounts structurally exclusive: applying one kind
// replaces whatever the other kind had set.
type Cart struct {
	lines []LineItem
	mode  DiscountMode
}

// NewCart returns an empty cart with no discount.
func NewCart() *Cart {
	return &Cart{}
}

// AddLine appends a line item.
func (c *Cart) AddLine(li LineItem) {
	c.lines = append(c.lines, li)
}

// Lines returns the current line items.
func (c *Cart) Lines() []LineItem {
	return c.lines
}

// Mode returns the active discount mode.
func (c *Cart) Mode() DiscountMode {
	return c.mode
}

// SetLineDiscount attaches a discount to one product's line, clearing any bill
// discount in the process.
func (c *Cart) SetLineDiscount(productID uuid.UUID, d Discount) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if !c.mode.IsPerLine() {
		c.mode = PerLine(nil)
	}
	c.mode.lines[productID] = d
	return nil
}

// SetBillDiscount applies a whole-cart discount, clearing any line discounts.
func (c *Cart) SetBillDiscount(d Discount) error {
	if err := d.Validate(); err != nil {
		return err
	}
	c.mode = Bill(d)
	return nil
}

// ClearDiscounts resets the cart to no discount.
func (c *Cart) ClearDiscounts() {
	c.mode = NoDiscount()
}

// Totals recomputes the cart totals from current lines and discounts.
func (c *Cart) Totals() (CartTotals, error) {
	return Compute(c.lines, c.mode)
}
