package service

import (
	"context"
	"time"

	"checkout-service/internal/models"
)

// EventPublisher sends domain events. The Kafka publisher implements it.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishStockChanged(ctx context.Context, event *models.StockChangedEvent) error
}

// IdempotencyStore maps a user's idempotency key to the order it produced.
// ReserveOrderKey claims the key before any work starts. When the key is
// already taken it reports reserved=false with the recorded order id, or ""
// while the first request is still running.
type IdempotencyStore interface {
	ReserveOrderKey(ctx context.Context, userID, key string, ttl time.Duration) (orderID string, reserved bool, err error)
	CompleteOrderKey(ctx context.Context, userID, key, orderID string, ttl time.Duration) error
	ReleaseOrderKey(ctx context.Context, userID, key string) error
}

// ProductCache is a read-through cache for single product lookups
type ProductCache interface {
	CacheProduct(ctx context.Context, product *models.Product, ttl time.Duration) error
	GetCachedProduct(ctx context.Context, productID string) (*models.Product, bool, error)
	InvalidateProducts(ctx context.Context, productIDs ...string) error
}

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}
