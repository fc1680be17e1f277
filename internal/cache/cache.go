// Package cache holds read-through caches in front of the catalog.
package cache

import (
	"context"

	"github.com/egannguyen/energystack-storefront/internal/entity"
)

// CatalogCache stores product listing pages. Entries are keyed by a normalized filter and are
// dropped as a group by Invalidate whenever stock or prices change.
type CatalogCache interface {
	// GetProducts returns the cached page for key, reporting false on a miss. The returned
	// version is the catalog version the lookup ran against; pass it to SetProducts when
	// filling the miss.
	GetProducts(ctx context.Context, key string) (page *entity.ProductPage, version int64, ok bool, err error)
	// SetProducts stores page under the given version. A page read before an Invalidate is
	// therefore never visible after it.
	SetProducts(ctx context.Context, key string, version int64, page *entity.ProductPage) error
	Invalidate(ctx context.Context) error
}

// Nop never caches anything.
type Nop struct{}

func (Nop) GetProducts(ctx context.Context, key string) (*entity.ProductPage, int64, bool, error) {
	return nil, 0, false, nil
}

func (Nop) SetProducts(ctx context.Context, key string, version int64, page *entity.ProductPage) error {
	return nil
}

func (Nop) Invalidate(ctx context.Context) error { return nil }
