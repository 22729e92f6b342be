package domain

import "time"

// Product is a catalog entry. Prices are integer cents.
// BulkPrice and BulkMinQuantity are optional; the bulk tier only takes
// effect when both are present.
type Product struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	UnitPrice       int64     `json:"unit_price"`
	BulkPrice       *int64    `json:"bulk_price,omitempty"`
	BulkMinQuantity *int      `json:"bulk_min_quantity,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
