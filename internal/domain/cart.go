package domain

import "time"

// CartLine is one (product, quantity) pairing in a buyer's cart. A buyer
// holds at most one line per product; adding the same product again
// merges into the existing line.
type CartLine struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Product   Product   `json:"product"`
	CreatedAt time.Time `json:"created_at"`
}

// UnitPrice is the per-unit price this line would be charged right now.
func (l CartLine) UnitPrice() int64 {
	return EffectiveUnitPrice(l.Product, l.Quantity)
}

// Subtotal is UnitPrice times quantity, in cents.
func (l CartLine) Subtotal() int64 {
	return l.UnitPrice() * int64(l.Quantity)
}

// Cart is the full set of lines for one identity.
type Cart struct {
	UserID string     `json:"user_id"`
	Lines  []CartLine `json:"lines"`
}

// Total sums the effective subtotals of all lines, in cents.
func (c Cart) Total() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.Subtotal()
	}
	return total
}

// ItemCount sums the quantities across all lines.
func (c Cart) ItemCount() int {
	var count int
	for _, l := range c.Lines {
		count += l.Quantity
	}
	return count
}
