package entity

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// EventStoreRecord represents an event stored in the database.
type EventStoreRecord struct {
	ID         string          `json:"id"`
	StreamID   string          `json:"streamId"`
	StreamType string          `json:"streamType"`
	Version    int             `json:"version"`
	EventType  string          `json:"eventType"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Event represents a domain event.
type Event interface {
	EventType() string
}

// Stream types recorded in the event store.
const StreamOrder = "order"

// Topics the storefront publishes to and consumes from.
const (
	TopicOrderPlaced      = "orders.placed"
	TopicOrderStatus      = "orders.status"
	TopicOrderFulfillment = "orders.fulfillment"

	FulfillmentGroupID = "storefront-fulfillment"
)

// OrderPlaced is emitted when a checkout commits.
type OrderPlaced struct {
	OrderID   string          `json:"orderId"`
	SessionID string          `json:"sessionId"`
	Items     []PlacedLine    `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	PlacedAt  time.Time       `json:"placedAt"`
}

func (e OrderPlaced) EventType() string { return "OrderPlaced" }

// PlacedLine is a purchased line as carried by OrderPlaced.
type PlacedLine struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// NewOrderPlaced builds the event for a freshly placed order.
func NewOrderPlaced(o *Order) OrderPlaced {
	lines := make([]PlacedLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, PlacedLine{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price})
	}
	return OrderPlaced{
		OrderID:   o.ID,
		SessionID: o.SessionID,
		Items:     lines,
		Subtotal:  o.Subtotal,
		Tax:       o.Tax,
		Total:     o.Total,
		PlacedAt:  o.UpdatedAt,
	}
}

// OrderStatusChanged is emitted on every status transition after placement.
type OrderStatusChanged struct {
	OrderID   string      `json:"orderId"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	ChangedAt time.Time   `json:"changedAt"`
}

func (e OrderStatusChanged) EventType() string { return "OrderStatusChanged" }

// FulfillmentUpdate is consumed from the fulfillment topic to advance an order.
type FulfillmentUpdate struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
}
