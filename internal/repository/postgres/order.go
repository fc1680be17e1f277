package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/egannguyen/energystack-storefront/internal/apperr"
	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/egannguyen/energystack-storefront/internal/repository"
	"github.com/lib/pq"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new OrderRepository backed by Postgres.
func NewOrderRepository(db *sql.DB) repository.OrderRepository {
	return &orderRepository{db: db}
}

func findOrder(ctx context.Context, q querier, id string, lock bool) (*entity.Order, error) {
	query := "SELECT id, session_id, status, subtotal, tax, total, created_at, updated_at FROM orders WHERE id = $1"
	if lock {
		query += " FOR UPDATE"
	}

	var o entity.Order
	err := q.QueryRowContext(ctx, query, id).Scan(
		&o.ID, &o.SessionID, &o.Status, &o.Subtotal, &o.Tax, &o.Total, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order %s: %w", id, err)
	}
	o.Items = []entity.OrderItem{}
	return &o, nil
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	o, err := findOrder(ctx, r.db, id, false)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.created_at,
			p.id, p.name, p.description, p.price, p.category, p.stock, p.images, p.created_at, p.updated_at
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.seq`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item entity.OrderItem
			p    entity.Product
		)
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &item.CreatedAt,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Stock, pq.Array(&p.Images), &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.Product = &p
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order item rows: %w", err)
	}

	return o, nil
}
