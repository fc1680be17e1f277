package entity

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPlaced    OrderStatus = "placed"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
)

var statusOrder = []OrderStatus{StatusPending, StatusPlaced, StatusShipped, StatusDelivered}

func (s OrderStatus) rank() int {
	for i, known := range statusOrder {
		if s == known {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	return s.rank() >= 0
}

// CanTransitionTo reports whether next directly follows s. Statuses only move forward one step.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to == from+1
}
