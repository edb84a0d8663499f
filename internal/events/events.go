package events

import (
	"encoding/json"
	"time"
)

// Activity event types published for downstream consumers (analytics,
// notification workers). Publishing is always best-effort: a broker outage
// must never block a shopper.
const (
	EventOrderSubmitted = "storefront.order_submitted"
	EventCartCleared    = "storefront.cart_cleared"
)

type OrderSubmitted struct {
	ShopperID   string      `json:"shopper_id"`
	OrderID     string      `json:"order_id"`
	CustomerID  string      `json:"customer_id"`
	Email       string      `json:"email"`
	Items       []OrderLine `json:"items"`
	ItemCount   int         `json:"item_count"`
	Total       float64     `json:"total"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// OrderLine is a cart line as carried on the activity event, so downstream
// consumers need no extra lookup to act on an order.
type OrderLine struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type CartCleared struct {
	ShopperID string    `json:"shopper_id"`
	ClearedAt time.Time `json:"cleared_at"`
}

// Envelope wraps an activity payload with its type tag.
type Envelope struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}
