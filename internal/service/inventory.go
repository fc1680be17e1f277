package service

import (
	"context"

	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/egannguyen/energystack-storefront/internal/repository"
)

// Inventory is the one place stock is checked. Cart mutations and checkout both go through
// TryReserve, so the check always happens under the product's row lock.
type Inventory struct{}

// TryReserve locks productID for the rest of tx and reports whether its stock covers quantity.
// The product is returned either way so callers can name it in errors.
func (Inventory) TryReserve(ctx context.Context, tx repository.Tx, productID string, quantity int) (*entity.Product, bool, error) {
	p, err := tx.LockProduct(ctx, productID)
	if err != nil {
		return nil, false, err
	}
	return p, p.Stock >= quantity, nil
}
