package service

import (
	"context"
	"errors"
	"fmt"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// InventoryLedger is the only writer of product stock
type InventoryLedger struct {
	store  store.Store
	cache  ProductCache
	events EventPublisher
	logger *zap.Logger
}

// NewInventoryLedger creates a new inventory ledger. cache and events may be nil.
func NewInventoryLedger(st store.Store, cache ProductCache, events EventPublisher) *InventoryLedger {
	return &InventoryLedger{
		store:  st,
		cache:  cache,
		events: events,
		logger: util.Named("inventory"),
	}
}

// GetStock returns the current stock of a product
func (l *InventoryLedger) GetStock(ctx context.Context, productID string) (int, error) {
	if !models.IsValidID(productID) {
		return 0, invalidInput("invalid product id %q", productID)
	}

	product, err := l.store.GetProduct(ctx, productID)
	if err != nil {
		return 0, mapProductErr(err)
	}
	return product.Stock, nil
}

// ReserveAndDecrement checks and subtracts quantity inside the caller's unit of
// work and returns the new stock. It never commits or aborts tx itself.
func (l *InventoryLedger) ReserveAndDecrement(ctx context.Context, tx store.Tx, productID string, quantity int) (int, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.ReserveAndDecrement",
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity),
	)
	var err error
	defer func() { util.EndSpan(span, err) }()

	if quantity < 1 {
		err = invalidInput("quantity must be at least 1")
		return 0, err
	}

	product, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.StockDecrementsFailed.WithLabelValues("not_found").Inc()
		}
		err = mapProductErr(err)
		return 0, err
	}

	if product.Stock < quantity {
		util.StockDecrementsFailed.WithLabelValues("insufficient_stock").Inc()
		err = &StockError{
			Kind:      ErrInsufficientStock,
			ProductID: productID,
			Name:      product.Name,
			Requested: quantity,
			Available: product.Stock,
		}
		return 0, err
	}

	remaining, err := tx.DecrementStock(ctx, productID, quantity)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			util.StockDecrementsFailed.WithLabelValues("insufficient_stock").Inc()
			err = &StockError{
				Kind:      ErrInsufficientStock,
				ProductID: productID,
				Name:      product.Name,
				Requested: quantity,
				Available: remaining,
			}
			return 0, err
		}
		util.StockDecrementsFailed.WithLabelValues("error").Inc()
		err = mapProductErr(err)
		return 0, err
	}

	return remaining, nil
}

// SetStock overwrites a product's stock from a seller edit
func (l *InventoryLedger) SetStock(ctx context.Context, productID string, stock int) error {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.SetStock", attribute.String("product.id", productID))
	var err error
	defer func() { util.EndSpan(span, err) }()

	if stock < 0 {
		err = invalidInput("stock must not be negative")
		return err
	}
	if err = l.store.SetProductStock(ctx, productID, stock); err != nil {
		err = mapProductErr(err)
		return err
	}

	l.logger.Info("Stock updated",
		zap.String("product_id", productID),
		zap.Int("stock", stock))

	l.announceStock(ctx, productID, stock)
	return nil
}

// EvictCached drops cached copies of products whose stock changed in a
// committed unit of work. Failures are logged only.
func (l *InventoryLedger) EvictCached(ctx context.Context, productIDs ...string) {
	if l.cache == nil || len(productIDs) == 0 {
		return
	}
	if err := l.cache.InvalidateProducts(ctx, productIDs...); err != nil {
		l.logger.Warn("Failed to invalidate cached products",
			zap.Strings("product_ids", productIDs),
			zap.Error(err))
	}
}

// announceStock evicts the cached product and publishes the new stock level.
// Failures are logged only.
func (l *InventoryLedger) announceStock(ctx context.Context, productID string, stock int) {
	l.EvictCached(ctx, productID)

	if l.events != nil {
		event := &models.StockChangedEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeStockChanged),
			ProductID: productID,
			Stock:     stock,
		}
		if err := l.events.PublishStockChanged(ctx, event); err != nil {
			l.logger.Error("Failed to publish StockChanged event",
				zap.String("product_id", productID),
				zap.Error(err))
		}
	}
}

func mapProductErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrProductNotFound, err)
	}
	return err
}
