package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/egannguyen/energystack-storefront/internal/cache"
	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/egannguyen/energystack-storefront/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type publishedEvent struct {
	topic string
	key   string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, key: key, event: event})
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

// mapCache mirrors the Redis cache's versioned keys.
type mapCache struct {
	mu            sync.Mutex
	version       int64
	pages         map[string]*entity.ProductPage
	hits          int
	invalidations atomic.Int32
}

var _ cache.CatalogCache = (*mapCache)(nil)

func newMapCache() *mapCache {
	return &mapCache{pages: map[string]*entity.ProductPage{}}
}

func versionedKey(version int64, key string) string {
	return fmt.Sprintf("v%d:%s", version, key)
}

func (c *mapCache) GetProducts(ctx context.Context, key string) (*entity.ProductPage, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	page, ok := c.pages[versionedKey(c.version, key)]
	if ok {
		c.hits++
	}
	return page, c.version, ok, nil
}

func (c *mapCache) SetProducts(ctx context.Context, key string, version int64, page *entity.ProductPage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[versionedKey(version, key)] = page
	return nil
}

func (c *mapCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	c.invalidations.Add(1)
	return nil
}

type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	cache     *mapCache
	carts     *CartService
	orders    *OrderService
	catalog   *CatalogService

	created time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithAttempts(t, DefaultTxAttempts)
}

func newFixtureWithAttempts(t *testing.T, attempts int) *fixture {
	t.Helper()
	store := memory.NewStore()
	runner := NewTxRunner(store, attempts)
	publisher := &recordingPublisher{}
	catalog := newMapCache()

	return &fixture{
		store:     store,
		publisher: publisher,
		cache:     catalog,
		carts:     NewCartService(runner, DefaultPricing()),
		orders:    NewOrderService(runner, store.Orders(), store.Events(), publisher, catalog, DefaultPricing()),
		catalog:   NewCatalogService(store.Products(), catalog),
		created:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// addProduct stores a product created one minute after the previous one.
func (f *fixture) addProduct(t *testing.T, name, price string, stock int) entity.Product {
	t.Helper()
	f.created = f.created.Add(time.Minute)
	p := entity.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
		Category:    entity.CategoryAccessories,
		Stock:       stock,
		Images:      []string{},
		CreatedAt:   f.created,
		UpdatedAt:   f.created,
	}
	f.store.PutProduct(p)
	return p
}

func (f *fixture) stockOf(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.Products().FindByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) cartLines(t *testing.T, sessionID string) []entity.CartItem {
	t.Helper()
	c, err := f.carts.GetOrCreateCart(context.Background(), sessionID)
	require.NoError(t, err)
	return c.Items
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
