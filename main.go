package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/egannguyen/energystack-storefront/internal/cache"
	rediscache "github.com/egannguyen/energystack-storefront/internal/cache/redis"
	"github.com/egannguyen/energystack-storefront/internal/config"
	deliveryHttp "github.com/egannguyen/energystack-storefront/internal/delivery/http"
	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/egannguyen/energystack-storefront/internal/messaging"
	"github.com/egannguyen/energystack-storefront/internal/messaging/kafka"
	"github.com/egannguyen/energystack-storefront/internal/repository"
	"github.com/egannguyen/energystack-storefront/internal/repository/memory"
	"github.com/egannguyen/energystack-storefront/internal/repository/postgres"
	"github.com/egannguyen/energystack-storefront/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Logger())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Storage ---
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to init store", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	// --- Catalog cache ---
	var catalogCache cache.CatalogCache = cache.Nop{}
	if cfg.RedisURL != "" {
		rc, err := rediscache.NewCatalogCache(cfg.RedisURL, cfg.CatalogCacheTTL)
		if err != nil {
			slog.Error("Failed to init catalog cache", "err", err)
			os.Exit(1)
		}
		defer rc.Close()
		catalogCache = rc
	}

	// --- Kafka ---
	var (
		publisher  messaging.Publisher = messaging.NopPublisher{}
		subscriber messaging.Subscriber
	)
	if len(cfg.KafkaBrokers) > 0 {
		publisher, subscriber = kafka.NewKafkaBroker(cfg.KafkaBrokers)
	}
	defer publisher.Close()

	// --- Services ---
	pricing := service.Pricing{
		TaxRate: cfg.TaxRate,
		Shipping: entity.ShippingPolicy{
			FlatFee:       cfg.ShippingFlatFee,
			FreeThreshold: cfg.FreeShippingThreshold,
		},
	}
	runner := service.NewTxRunner(store, cfg.TxMaxAttempts)
	catalogSvc := service.NewCatalogService(store.Products(), catalogCache)
	cartSvc := service.NewCartService(runner, pricing)
	orderSvc := service.NewOrderService(runner, store.Orders(), store.Events(), publisher, catalogCache, pricing)

	if cfg.SeedCatalog {
		if err := catalogSvc.Seed(ctx, service.DemoCatalog(time.Now())); err != nil {
			slog.Error("Failed to seed products", "err", err)
			os.Exit(1)
		}
	}

	// --- HTTP API ---
	handler := deliveryHttp.NewHandler(catalogSvc, cartSvc, orderSvc)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Start everything ---
	// Consumer: orders.fulfillment → OrderService.HandleFulfillmentUpdate (advances status)
	waitConsumers := func() {}
	if subscriber != nil {
		waitConsumers = startConsumer(ctx, subscriber, entity.TopicOrderFulfillment, entity.FulfillmentGroupID, orderSvc.HandleFulfillmentUpdate)
		slog.Info("🔄 Kafka consumer started", "topic", entity.TopicOrderFulfillment)
	}

	go func() {
		slog.Info("🚀 HTTP server starting", "addr", httpServer.Addr, "store", cfg.StoreDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "err", err)
	}

	// The store, cache and broker are closed by the deferred calls above, after this returns.
	waitConsumers()
	slog.Info("Shutdown complete")
}

// startConsumer runs subscriber in the background until ctx is cancelled. The returned function
// blocks until the consumer, including any message it is still handling, has returned.
func startConsumer(ctx context.Context, subscriber messaging.Subscriber, topic, groupID string, handler func(ctx context.Context, payload []byte) error) func() {
	var wg sync.WaitGroup
	wg.Go(func() {
		subscriber.Consume(ctx, topic, groupID, handler)
	})
	return wg.Wait
}

// openStore returns the configured Store and a function releasing its resources.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		slog.Warn("Using in-memory store, data is lost on exit")
		return memory.NewStore(), func() {}, nil
	}

	db, err := postgres.InitDB(ctx, cfg.DatabaseURL, cfg.MaxOpenConn)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewStore(db, cfg.Isolation), func() { db.Close() }, nil
}
