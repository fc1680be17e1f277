package repository

import (
	"context"
	"errors"

	"github.com/egannguyen/energystack-storefront/internal/entity"
)

// ErrTxConflict marks a transaction aborted by the database because it conflicted with a
// concurrent one (serialization failure or deadlock). The whole unit of work may be retried.
var ErrTxConflict = errors.New("transaction conflict")

// ProductRepository handles catalog reads outside of a transaction.
type ProductRepository interface {
	List(ctx context.Context, filter entity.ProductFilter) (*entity.ProductPage, error)
	FindByID(ctx context.Context, id string) (*entity.Product, error)
	// Seed inserts initial products if none exist.
	Seed(ctx context.Context, products []entity.Product) error
}

// OrderRepository handles order reads outside of a transaction.
type OrderRepository interface {
	// FindByID returns the order with its items and their products.
	FindByID(ctx context.Context, id string) (*entity.Order, error)
}

// EventStore loads the event history of a stream.
type EventStore interface {
	LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error)
}

// Tx is a unit of work. Every write made through it commits or rolls back together.
type Tx interface {
	// GetOrCreateCart returns the session's cart, creating it if absent. With lock set the
	// cart row stays locked until the transaction ends.
	GetOrCreateCart(ctx context.Context, sessionID string, lock bool) (*entity.Cart, error)
	// FindCart returns the session's cart, or a NotFound error.
	FindCart(ctx context.Context, sessionID string, lock bool) (*entity.Cart, error)
	// CartItems returns the cart's lines with products loaded, oldest first.
	CartItems(ctx context.Context, cartID string) ([]entity.CartItem, error)
	// FindCartItem returns the line for productID, or nil when the product is not in the cart.
	FindCartItem(ctx context.Context, cartID, productID string) (*entity.CartItem, error)
	// FindCartItemByID returns the line with itemID in cartID, or a NotFound error.
	FindCartItemByID(ctx context.Context, cartID, itemID string) (*entity.CartItem, error)
	InsertCartItem(ctx context.Context, item *entity.CartItem) error
	SetCartItemQuantity(ctx context.Context, itemID string, quantity int) error
	DeleteCartItem(ctx context.Context, itemID string) error
	ClearCart(ctx context.Context, cartID string) error

	// LockProduct reads a product and holds its row lock until the transaction ends.
	LockProduct(ctx context.Context, productID string) (*entity.Product, error)
	// DecrementStock lowers stock by quantity, failing with InsufficientStock rather than going negative.
	DecrementStock(ctx context.Context, productID string, quantity int) error

	InsertOrder(ctx context.Context, order *entity.Order) error
	InsertOrderItem(ctx context.Context, item *entity.OrderItem) error
	// FindOrder returns the order row without items, locked when lock is set.
	FindOrder(ctx context.Context, orderID string, lock bool) (*entity.Order, error)
	SetOrderStatus(ctx context.Context, orderID string, status entity.OrderStatus) error

	// AppendEvent adds event to the end of streamID's history.
	AppendEvent(ctx context.Context, streamID, streamType string, event entity.Event) error
}

// Store opens units of work and exposes the read repositories.
type Store interface {
	// WithinTx runs fn in a transaction, committing when fn returns nil and rolling back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Products() ProductRepository
	Orders() OrderRepository
	Events() EventStore
}
