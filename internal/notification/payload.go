package notification

import "encoding/json"

// Kind selects which mail endpoints a notification fans out to.
type Kind string

const (
	KindOrderCreated  Kind = "order.created"
	KindStatusChanged Kind = "status.changed"
)

// Envelope is the wire form carried through the outbox and the
// notification topic: the kind plus the kind-specific payload.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// ItemPayload is one order line as the mail templates render it.
type ItemPayload struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
}

// OrderCreatedPayload goes to both the admin notification endpoint and
// the customer confirmation endpoint.
type OrderCreatedPayload struct {
	OrderID         string        `json:"orderId"`
	CustomerEmail   string        `json:"customerEmail"`
	CompanyName     string        `json:"companyName"`
	OrderTotal      int64         `json:"orderTotal"`
	ShippingAddress string        `json:"shippingAddress"`
	PaymentMethod   string        `json:"paymentMethod"`
	Items           []ItemPayload `json:"items"`
}

// StatusChangedPayload goes to the customer status endpoint.
type StatusChangedPayload struct {
	OrderID       string `json:"orderId"`
	NewStatus     string `json:"newStatus"`
	CustomerEmail string `json:"customerEmail"`
	CompanyName   string `json:"companyName,omitempty"`
	OrderTotal    int64  `json:"orderTotal"`
}
