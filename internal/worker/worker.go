package worker

import (
	"context"
	"fmt"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// ProductInvalidator drops cached product entries
type ProductInvalidator interface {
	InvalidateProducts(ctx context.Context, productIDs ...string) error
}

// CacheWorker keeps the product cache in step with stock changes made by
// any instance of the service
type CacheWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	cache        ProductInvalidator
	logger       *zap.Logger
}

// NewCacheWorker creates a new cache worker
func NewCacheWorker(consumer *broker.Consumer, cache ProductInvalidator) *CacheWorker {
	w := &CacheWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		cache:        cache,
		logger:       util.Named("cache-worker"),
	}

	w.eventHandler.OnOrderCreated(w.HandleOrderCreated)
	w.eventHandler.OnStockChanged(w.HandleStockChanged)
	return w
}

// Start starts the worker
func (w *CacheWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cache worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CacheWorker) Stop() error {
	w.logger.Info("Stopping cache worker")
	return w.consumer.Close()
}

// HandleOrderCreated evicts every product touched by the order
func (w *CacheWorker) HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	ids := make([]string, 0, len(event.Items))
	for _, item := range event.Items {
		ids = append(ids, item.ProductID)
	}
	if err := w.cache.InvalidateProducts(ctx, ids...); err != nil {
		return fmt.Errorf("failed to evict products for order %s: %w", event.OrderID, err)
	}

	w.logger.Debug("Evicted ordered products",
		zap.String("order_id", event.OrderID),
		zap.Strings("product_ids", ids))
	return nil
}

// HandleStockChanged evicts the product whose stock was edited
func (w *CacheWorker) HandleStockChanged(ctx context.Context, event *models.StockChangedEvent) error {
	if err := w.cache.InvalidateProducts(ctx, event.ProductID); err != nil {
		return fmt.Errorf("failed to evict product %s: %w", event.ProductID, err)
	}
	return nil
}
