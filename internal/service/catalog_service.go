package service

import (
	"context"
	"log/slog"

	"github.com/egannguyen/energystack-storefront/internal/apperr"
	"github.com/egannguyen/energystack-storefront/internal/cache"
	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/egannguyen/energystack-storefront/internal/repository"
)

// CatalogService serves product reads, through the catalog cache when one is configured.
type CatalogService struct {
	productRepo repository.ProductRepository
	cache       cache.CatalogCache
}

func NewCatalogService(productRepo repository.ProductRepository, catalog cache.CatalogCache) *CatalogService {
	return &CatalogService{productRepo: productRepo, cache: catalog}
}

// ListProducts returns one page of the catalog, newest first.
func (s *CatalogService) ListProducts(ctx context.Context, filter entity.ProductFilter) (*entity.ProductPage, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	key := filter.Key()

	page, version, ok, cacheErr := s.cache.GetProducts(ctx, key)
	if cacheErr != nil {
		slog.Warn("Catalog cache read failed", "key", key, "err", cacheErr)
	}
	if ok {
		return page, nil
	}

	page, err = s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Fill under the version seen before the read, never a later one.
	if cacheErr == nil {
		if err := s.cache.SetProducts(ctx, key, version, page); err != nil {
			slog.Warn("Catalog cache write failed", "key", key, "err", err)
		}
	}

	slog.Info("Products fetched", "count", len(page.Products), "total", page.Pagination.Total, "page", filter.Page)
	return page, nil
}

// GetProduct returns a single product.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	if id == "" {
		return nil, apperr.NotFound("Product not found")
	}
	return s.productRepo.FindByID(ctx, id)
}

// Seed loads products into an empty catalog.
func (s *CatalogService) Seed(ctx context.Context, products []entity.Product) error {
	if err := s.productRepo.Seed(ctx, products); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx)
}
