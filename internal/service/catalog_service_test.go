package service

import (
	"context"
	"testing"
	"time"

	"github.com/egannguyen/energystack-storefront/internal/apperr"
	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/egannguyen/energystack-storefront/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProducts_NewestFirstAndPaged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ids []string
	for _, name := range []string{"one", "two", "three", "four", "five"} {
		ids = append(ids, f.addProduct(t, name, "10.00", 1).ID)
	}

	page, err := f.catalog.ListProducts(ctx, entity.ProductFilter{Limit: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Products, 2)
	assert.Equal(t, ids[2], page.Products[0].ID)
	assert.Equal(t, ids[1], page.Products[1].ID)
	assert.Equal(t, entity.Pagination{Page: 2, Limit: 2, Total: 5, TotalPages: 3}, page.Pagination)

	last, err := f.catalog.ListProducts(ctx, entity.ProductFilter{Limit: 2, Page: 3})
	require.NoError(t, err)
	require.Len(t, last.Products, 1)
	assert.Equal(t, ids[0], last.Products[0].ID)
}

func TestListProducts_Deterministic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Identical creation times fall back to id order.
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, p := range DemoCatalog(created) {
		p.CreatedAt = created
		f.store.PutProduct(p)
	}

	filter := entity.ProductFilter{Limit: 4}
	first, err := f.store.Products().List(ctx, mustNormalize(t, filter))
	require.NoError(t, err)
	for range 5 {
		again, err := f.store.Products().List(ctx, mustNormalize(t, filter))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 6, first.Pagination.Total)
	assert.Greater(t, first.Products[0].ID, first.Products[1].ID)
}

func mustNormalize(t *testing.T, f entity.ProductFilter) entity.ProductFilter {
	t.Helper()
	n, err := f.Normalize()
	require.NoError(t, err)
	return n
}

func TestListProducts_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.catalog.Seed(ctx, DemoCatalog(time.Now())))

	low, high := dec("200"), dec("1300")
	tests := []struct {
		name   string
		filter entity.ProductFilter
		want   []string
	}{
		{"search is case-insensitive", entity.ProductFilter{Search: "PANEL"}, []string{"EcoPanel 350W Monocrystalline", "SolarMax Pro 400W Panel"}},
		{"search matches description", entity.ProductFilter{Search: "lcd display"}, []string{"SmartCharge MPPT Controller"}},
		{"category", entity.ProductFilter{Category: entity.CategoryAccessories}, []string{"SmartCharge MPPT Controller", "SolarMount Roof Kit"}},
		{"inclusive price range", entity.ProductFilter{MinPrice: &low, MaxPrice: &high}, []string{"EcoPanel 350W Monocrystalline", "PowerInvert 5000W Hybrid Inverter", "SolarMax Pro 400W Panel"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.catalog.ListProducts(ctx, tt.filter)
			require.NoError(t, err)
			var names []string
			for _, p := range page.Products {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.want, names)
			assert.Equal(t, len(tt.want), page.Pagination.Total)
		})
	}
}

func TestListProducts_UsesCacheUntilCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Panel", "100.00", 3)

	_, err := f.catalog.ListProducts(ctx, entity.ProductFilter{})
	require.NoError(t, err)
	cached, err := f.catalog.ListProducts(ctx, entity.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)
	assert.Equal(t, 3, cached.Products[0].Stock)

	_, err = f.carts.AddItem(ctx, "sess", p.ID, 2)
	require.NoError(t, err)
	_, err = f.orders.PlaceOrder(ctx, "sess")
	require.NoError(t, err)

	fresh, err := f.catalog.ListProducts(ctx, entity.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)
	assert.Equal(t, 1, fresh.Products[0].Stock)
}

// racingRepo runs a hook after each List read, before the caller sees the page.
type racingRepo struct {
	repository.ProductRepository
	afterList func()
}

func (r *racingRepo) List(ctx context.Context, filter entity.ProductFilter) (*entity.ProductPage, error) {
	page, err := r.ProductRepository.List(ctx, filter)
	if r.afterList != nil {
		r.afterList()
	}
	return page, err
}

func TestListProducts_CheckoutDuringMissDoesNotCacheStaleStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Panel", "100.00", 4)
	_, err := f.carts.AddItem(ctx, "sess", p.ID, 3)
	require.NoError(t, err)

	repo := &racingRepo{ProductRepository: f.store.Products()}
	repo.afterList = func() {
		repo.afterList = nil
		_, err := f.orders.PlaceOrder(ctx, "sess")
		require.NoError(t, err)
	}
	catalog := NewCatalogService(repo, f.cache)

	stale, err := catalog.ListProducts(ctx, entity.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, stale.Products[0].Stock)

	fresh, err := catalog.ListProducts(ctx, entity.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, f.cache.hits)
	assert.Equal(t, 1, fresh.Products[0].Stock)
}

func TestListProducts_InvalidFilter(t *testing.T) {
	f := newFixture(t)
	_, err := f.catalog.ListProducts(context.Background(), entity.ProductFilter{Limit: 101})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Limit must be between 1 and 100", apperr.Message(err))
}

func TestGetProduct(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "Panel", "100.00", 3)

	got, err := f.catalog.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Panel", got.Name)

	_, err = f.catalog.GetProduct(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "Product not found", apperr.Message(err))
}

func TestSeed_OnlyIntoEmptyCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.catalog.Seed(ctx, DemoCatalog(time.Now())))
	require.NoError(t, f.catalog.Seed(ctx, DemoCatalog(time.Now())))

	page, err := f.catalog.ListProducts(ctx, entity.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Pagination.Total)
}
