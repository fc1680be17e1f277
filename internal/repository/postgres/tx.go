package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/egannguyen/energystack-storefront/internal/apperr"
	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// pgTx implements repository.Tx on top of a *sql.Tx.
type pgTx struct {
	q querier
}

func (t *pgTx) GetOrCreateCart(ctx context.Context, sessionID string, lock bool) (*entity.Cart, error) {
	// Concurrent first requests for one session race on the unique session_id; the loser is a no-op.
	_, err := t.q.ExecContext(ctx,
		"INSERT INTO carts (id, session_id) VALUES ($1, $2) ON CONFLICT (session_id) DO NOTHING",
		uuid.NewString(), sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return t.FindCart(ctx, sessionID, lock)
}

func (t *pgTx) FindCart(ctx context.Context, sessionID string, lock bool) (*entity.Cart, error) {
	query := "SELECT id, session_id, created_at, updated_at FROM carts WHERE session_id = $1"
	if lock {
		query += " FOR UPDATE"
	}

	var c entity.Cart
	err := t.q.QueryRowContext(ctx, query, sessionID).Scan(&c.ID, &c.SessionID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Cart not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	c.Items = []entity.CartItem{}
	return &c, nil
}

func (t *pgTx) CartItems(ctx context.Context, cartID string) ([]entity.CartItem, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
			p.id, p.name, p.description, p.price, p.category, p.stock, p.images, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.seq`,
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := []entity.CartItem{}
	for rows.Next() {
		var (
			item entity.CartItem
			p    entity.Product
		)
		err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Stock, pq.Array(&p.Images), &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		item.Product = &p
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart item rows: %w", err)
	}
	return items, nil
}

const cartItemColumns = "id, cart_id, product_id, quantity, created_at, updated_at"

func scanCartItem(row rowScanner) (*entity.CartItem, error) {
	var item entity.CartItem
	if err := row.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	return &item, nil
}

func (t *pgTx) FindCartItem(ctx context.Context, cartID, productID string) (*entity.CartItem, error) {
	item, err := scanCartItem(t.q.QueryRowContext(ctx,
		"SELECT "+cartItemColumns+" FROM cart_items WHERE cart_id = $1 AND product_id = $2",
		cartID, productID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cart item: %w", err)
	}
	return item, nil
}

func (t *pgTx) FindCartItemByID(ctx context.Context, cartID, itemID string) (*entity.CartItem, error) {
	item, err := scanCartItem(t.q.QueryRowContext(ctx,
		"SELECT "+cartItemColumns+" FROM cart_items WHERE id = $1 AND cart_id = $2",
		itemID, cartID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Cart item not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cart item: %w", err)
	}
	return item, nil
}

func (t *pgTx) InsertCartItem(ctx context.Context, item *entity.CartItem) error {
	_, err := t.q.ExecContext(ctx,
		"INSERT INTO cart_items ("+cartItemColumns+") VALUES ($1, $2, $3, $4, $5, $6)",
		item.ID, item.CartID, item.ProductID, item.Quantity, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert cart item: %w", err)
	}
	return nil
}

func (t *pgTx) SetCartItemQuantity(ctx context.Context, itemID string, quantity int) error {
	_, err := t.q.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1, updated_at = NOW() WHERE id = $2",
		quantity, itemID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteCartItem(ctx context.Context, itemID string) error {
	if _, err := t.q.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1", itemID); err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	return nil
}

func (t *pgTx) ClearCart(ctx context.Context, cartID string) error {
	if _, err := t.q.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (t *pgTx) LockProduct(ctx context.Context, productID string) (*entity.Product, error) {
	return findProduct(ctx, t.q, productID, true)
}

func (t *pgTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1",
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update product stock: %w", err)
	}
	if n == 0 {
		return apperr.InsufficientStock(productID, "Insufficient stock")
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *entity.Order) error {
	_, err := t.q.ExecContext(ctx,
		"INSERT INTO orders (id, session_id, status, subtotal, tax, total, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		o.ID, o.SessionID, o.Status, o.Subtotal, o.Tax, o.Total, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (t *pgTx) InsertOrderItem(ctx context.Context, item *entity.OrderItem) error {
	_, err := t.q.ExecContext(ctx,
		"INSERT INTO order_items (id, order_id, product_id, quantity, price, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		item.ID, item.OrderID, item.ProductID, item.Quantity, item.Price, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	return nil
}

func (t *pgTx) FindOrder(ctx context.Context, orderID string, lock bool) (*entity.Order, error) {
	return findOrder(ctx, t.q, orderID, lock)
}

func (t *pgTx) SetOrderStatus(ctx context.Context, orderID string, status entity.OrderStatus) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("Order not found")
	}
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, streamID, streamType string, event entity.Event) error {
	return appendEvent(ctx, t.q, streamID, streamType, event)
}
