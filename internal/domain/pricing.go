package domain

// EffectiveUnitPrice returns the unit price charged for a given quantity
// of a product. When the product defines a bulk tier and the quantity
// meets the threshold (inclusive), the bulk price applies; otherwise the
// base unit price does.
//
// This is the only place the tier rule lives. Cart display, checkout and
// order snapshots all go through it so the shown price and the charged
// price cannot diverge.
func EffectiveUnitPrice(p Product, quantity int) int64 {
	if p.BulkPrice != nil && p.BulkMinQuantity != nil && quantity >= *p.BulkMinQuantity {
		return *p.BulkPrice
	}
	return p.UnitPrice
}
