package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/egannguyen/energystack-storefront/internal/apperr"
	"github.com/egannguyen/energystack-storefront/internal/cache"
	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/egannguyen/energystack-storefront/internal/messaging"
	"github.com/egannguyen/energystack-storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderService orchestrates checkout and the order lifecycle.
type OrderService struct {
	runner    *TxRunner
	orderRepo repository.OrderRepository
	events    repository.EventStore
	inventory Inventory
	pricing   Pricing
	publisher messaging.Publisher
	catalog   cache.CatalogCache
	now       func() time.Time
}

func NewOrderService(
	runner *TxRunner,
	orderRepo repository.OrderRepository,
	events repository.EventStore,
	publisher messaging.Publisher,
	catalog cache.CatalogCache,
	pricing Pricing,
) *OrderService {
	return &OrderService{
		runner:    runner,
		orderRepo: orderRepo,
		events:    events,
		pricing:   pricing,
		publisher: publisher,
		catalog:   catalog,
		now:       time.Now,
	}
}

// PlaceOrder turns the session's cart into a placed order. Stock is checked and decremented,
// the order and its items are written and the cart is emptied in one transaction; on any
// failure nothing of it is visible.
func (s *OrderService) PlaceOrder(ctx context.Context, sessionID string) (*entity.Order, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	var placed entity.OrderPlaced
	err := s.runner.Run(ctx, "place order", func(ctx context.Context, tx repository.Tx) error {
		cart, err := tx.FindCart(ctx, sessionID, true)
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.EmptyCart()
		}
		if err != nil {
			return err
		}

		items, err := tx.CartItems(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return apperr.EmptyCart()
		}

		// Product rows are locked in id order so overlapping checkouts queue up instead of deadlocking.
		byProduct := slices.Clone(items)
		slices.SortFunc(byProduct, func(a, b entity.CartItem) int {
			return strings.Compare(a.ProductID, b.ProductID)
		})

		prices := make(map[string]decimal.Decimal, len(items))
		for _, item := range byProduct {
			p, ok, err := s.inventory.TryReserve(ctx, tx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.InsufficientStock(p.ID, fmt.Sprintf("Insufficient stock for %s", p.Name))
			}
			prices[p.ID] = p.Price
		}

		lines := make([]entity.Line, 0, len(items))
		for _, item := range items {
			lines = append(lines, entity.Line{UnitPrice: prices[item.ProductID], Quantity: item.Quantity})
		}
		totals := entity.CalculateTotals(lines, s.pricing.TaxRate)

		now := s.now()
		order := &entity.Order{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Status:    entity.StatusPending,
			Subtotal:  totals.Subtotal,
			Tax:       totals.Tax,
			Total:     totals.Total,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		for _, item := range items {
			oi := entity.OrderItem{
				ID:        uuid.NewString(),
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     prices[item.ProductID],
				CreatedAt: now,
			}
			if err := tx.InsertOrderItem(ctx, &oi); err != nil {
				return err
			}
			if err := tx.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
			order.Items = append(order.Items, oi)
		}

		if err := tx.ClearCart(ctx, cart.ID); err != nil {
			return err
		}

		if err := tx.SetOrderStatus(ctx, order.ID, entity.StatusPlaced); err != nil {
			return err
		}
		order.Status = entity.StatusPlaced

		placed = entity.NewOrderPlaced(order)
		return tx.AppendEvent(ctx, order.ID, entity.StreamOrder, placed)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Order created",
		"order_id", placed.OrderID,
		"session_id", sessionID,
		"total", placed.Total.StringFixed(2),
		"item_count", len(placed.Items),
	)

	// The order is committed; broker and cache trouble from here on is only logged.
	if err := s.publisher.PublishEvent(ctx, entity.TopicOrderPlaced, placed.OrderID, placed); err != nil {
		slog.Error("Failed to publish OrderPlaced", "order_id", placed.OrderID, "err", err)
	}
	if err := s.catalog.Invalidate(ctx); err != nil {
		slog.Error("Failed to invalidate catalog cache", "err", err)
	}

	order, err := s.orderRepo.FindByID(ctx, placed.OrderID)
	if err != nil {
		return nil, apperr.Storage("failed to reload placed order", err)
	}
	return order, nil
}

// GetOrder returns an order with its items and their products.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*entity.Order, error) {
	if orderID == "" {
		return nil, apperr.NotFound("Order not found")
	}
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	slog.Info("Order fetched", "order_id", orderID)
	return order, nil
}

// OrderHistory is an order's event stream together with the state it replays to.
type OrderHistory struct {
	OrderID string                    `json:"orderId"`
	Status  entity.OrderStatus        `json:"status"`
	Version int                       `json:"version"`
	Events  []entity.EventStoreRecord `json:"events"`
}

// OrderEvents returns the recorded history of an order.
func (s *OrderService) OrderEvents(ctx context.Context, orderID string) (*OrderHistory, error) {
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	records, err := s.events.LoadEvents(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order history: %w", err)
	}

	agg := entity.NewOrderAggregate(orderID)
	if err := agg.Rehydrate(records); err != nil {
		return nil, fmt.Errorf("failed to rehydrate order aggregate: %w", err)
	}

	return &OrderHistory{
		OrderID: orderID,
		Status:  agg.Status,
		Version: agg.GetVersion(),
		Events:  records,
	}, nil
}

// AdvanceStatus moves an order one step along its lifecycle. Repeating the current status is
// a no-op, so redelivered fulfillment messages are harmless.
func (s *OrderService) AdvanceStatus(ctx context.Context, orderID string, status entity.OrderStatus) error {
	if !status.Valid() {
		return apperr.Validation("Invalid order status %q", status)
	}

	var changed *entity.OrderStatusChanged
	err := s.runner.Run(ctx, "advance order status", func(ctx context.Context, tx repository.Tx) error {
		changed = nil

		order, err := tx.FindOrder(ctx, orderID, true)
		if err != nil {
			return err
		}
		if order.Status == status {
			return nil
		}
		if !order.Status.CanTransitionTo(status) {
			return apperr.Validation("Cannot move order from %s to %s", order.Status, status)
		}

		if err := tx.SetOrderStatus(ctx, orderID, status); err != nil {
			return err
		}
		event := entity.OrderStatusChanged{OrderID: orderID, From: order.Status, To: status, ChangedAt: s.now()}
		if err := tx.AppendEvent(ctx, orderID, entity.StreamOrder, event); err != nil {
			return err
		}
		changed = &event
		return nil
	})
	if err != nil {
		return err
	}

	if changed == nil {
		slog.Info("Order already in status", "order_id", orderID, "status", status)
		return nil
	}

	slog.Info("Order status changed", "order_id", orderID, "from", changed.From, "to", changed.To)
	if err := s.publisher.PublishEvent(ctx, entity.TopicOrderStatus, orderID, changed); err != nil {
		slog.Error("Failed to publish OrderStatusChanged", "order_id", orderID, "err", err)
	}
	return nil
}

// HandleFulfillmentUpdate is triggered by the message broker when fulfillment reports progress.
// Updates that can never apply are returned as backoff.Permanent so the consumer skips them;
// storage failures are returned plainly and the message is redelivered.
func (s *OrderService) HandleFulfillmentUpdate(ctx context.Context, payload []byte) error {
	var update entity.FulfillmentUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to unmarshal fulfillment update: %w", err))
	}
	if update.OrderID == "" {
		return backoff.Permanent(apperr.Validation("fulfillment update without order id"))
	}

	slog.Info("Service: Applying fulfillment update", "order_id", update.OrderID, "status", update.Status)
	err := s.AdvanceStatus(ctx, update.OrderID, update.Status)
	if apperr.Is(err, apperr.KindValidation) || apperr.Is(err, apperr.KindNotFound) {
		return backoff.Permanent(err)
	}
	return err
}
