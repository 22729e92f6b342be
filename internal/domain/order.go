package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// statusTransitions enumerates the legal (from, to) pairs. Delivered and
// cancelled are terminal.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s OrderStatus) bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransition reports whether an order may move from one status to
// another. Re-setting the current status is allowed as a no-op.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentBankTransfer     PaymentMethod = "bank_transfer"
	PaymentCrypto           PaymentMethod = "crypto"
	PaymentCorporateInvoice PaymentMethod = "corporate_invoice"
)

// ValidPaymentMethod reports whether m is one of the accepted methods.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentBankTransfer, PaymentCrypto, PaymentCorporateInvoice:
		return true
	}
	return false
}

// Order is an immutable record of a completed checkout. Only Status (and
// UpdatedAt alongside it) ever changes after creation; Total is fixed at
// checkout time and never recomputed.
type Order struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id,omitempty"`
	Total           int64         `json:"total"`
	Status          OrderStatus   `json:"status"`
	ShippingAddress string        `json:"shipping_address,omitempty"`
	PaymentMethod   PaymentMethod `json:"payment_method,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	ContactEmail    string        `json:"contact_email,omitempty"`
	CompanyName     string        `json:"company_name,omitempty"`
	Items           []OrderItem   `json:"items"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// OrderItem is a denormalized snapshot of one cart line at checkout time.
// Price is the effective unit price resolved when the order was created,
// deliberately not a reference to the product's live price.
type OrderItem struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
}

// Subtotal is the snapshot price times quantity, in cents.
func (i OrderItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}
