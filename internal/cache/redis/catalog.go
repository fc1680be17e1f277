package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/egannguyen/energystack-storefront/internal/cache"
	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/redis/go-redis/v9"
)

const versionKey = "catalog:version"

// CatalogCache keeps listing pages in Redis. Every key embeds the current catalog version, so
// bumping the version orphans all earlier pages and lets them expire on their own.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ cache.CatalogCache = (*CatalogCache)(nil)

// NewCatalogCache connects to redisURL and verifies the connection.
func NewCatalogCache(redisURL string, ttl time.Duration) (*CatalogCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &CatalogCache{client: client, ttl: ttl}, nil
}

func (c *CatalogCache) Close() error {
	return c.client.Close()
}

func (c *CatalogCache) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read catalog version: %w", err)
	}
	return v, nil
}

func pageKey(version int64, key string) string {
	return fmt.Sprintf("catalog:v%d:products:%s", version, key)
}

func (c *CatalogCache) GetProducts(ctx context.Context, key string) (*entity.ProductPage, int64, bool, error) {
	v, err := c.version(ctx)
	if err != nil {
		return nil, 0, false, err
	}

	data, err := c.client.Get(ctx, pageKey(v, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, v, false, nil
	}
	if err != nil {
		return nil, v, false, fmt.Errorf("failed to read cached products: %w", err)
	}

	var page entity.ProductPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, v, false, fmt.Errorf("failed to unmarshal cached products: %w", err)
	}
	return &page, v, true, nil
}

// SetProducts writes under the version the caller read with. After an Invalidate that key is
// never looked up again, so a page loaded before the bump simply expires unseen.
func (c *CatalogCache) SetProducts(ctx context.Context, key string, version int64, page *entity.ProductPage) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("failed to marshal products: %w", err)
	}

	if err := c.client.Set(ctx, pageKey(version, key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache products: %w", err)
	}
	return nil
}

func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("failed to bump catalog version: %w", err)
	}
	return nil
}
