package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AggregateBase provides a basic implementation for an aggregate.
type AggregateBase struct {
	ID      string
	Version int
}

func (a *AggregateBase) GetAggregateID() string {
	return a.ID
}

func (a *AggregateBase) GetVersion() int {
	return a.Version
}

// OrderAggregate rebuilds an order's lifecycle by replaying its event stream.
type OrderAggregate struct {
	AggregateBase
	Status    OrderStatus
	Total     decimal.Decimal
	PlacedAt  time.Time
	UpdatedAt time.Time
}

// NewOrderAggregate creates an empty OrderAggregate for id.
func NewOrderAggregate(id string) *OrderAggregate {
	return &OrderAggregate{
		AggregateBase: AggregateBase{ID: id, Version: 0},
		Status:        StatusPending,
	}
}

// ApplyEvent mutates the aggregate state based on the event.
func (a *OrderAggregate) ApplyEvent(e Event) error {
	switch e := e.(type) {
	case OrderPlaced:
		a.Status = StatusPlaced
		a.Total = e.Total
		a.PlacedAt = e.PlacedAt
		a.UpdatedAt = e.PlacedAt
	case OrderStatusChanged:
		if e.From != a.Status {
			return fmt.Errorf("status change from %s does not follow %s", e.From, a.Status)
		}
		a.Status = e.To
		a.UpdatedAt = e.ChangedAt
	default:
		return fmt.Errorf("unknown event type for OrderAggregate: %s", e.EventType())
	}
	a.Version++
	return nil
}

// Rehydrate rebuilds the aggregate from a list of records.
func (a *OrderAggregate) Rehydrate(records []EventStoreRecord) error {
	for _, rec := range records {
		var err error
		switch rec.EventType {
		case OrderPlaced{}.EventType():
			var e OrderPlaced
			if err = json.Unmarshal(rec.Payload, &e); err == nil {
				err = a.ApplyEvent(e)
			}
		case OrderStatusChanged{}.EventType():
			var e OrderStatusChanged
			if err = json.Unmarshal(rec.Payload, &e); err == nil {
				err = a.ApplyEvent(e)
			}
		default:
			return fmt.Errorf("unknown event type in stream: %s", rec.EventType)
		}
		if err != nil {
			return fmt.Errorf("failed to apply event %d from stream: %w", rec.Version, err)
		}
	}
	return nil
}
