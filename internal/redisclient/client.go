package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/models"

	"github.com/go-redis/redis/v8"
)

// Client serves the product cache and idempotency keys from one Redis connection
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func productKey(productID string) string {
	return fmt.Sprintf("product:%s", productID)
}

func idempotencyKey(userID, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", userID, key)
}

// CacheProduct stores a product as JSON under product:{id}
func (c *Client) CacheProduct(ctx context.Context, product *models.Product, ttl time.Duration) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product %s: %w", product.ID, err)
	}
	return c.rdb.Set(ctx, productKey(product.ID), data, ttl).Err()
}

// GetCachedProduct returns the cached product, or ok=false on a miss
func (c *Client) GetCachedProduct(ctx context.Context, productID string) (*models.Product, bool, error) {
	data, err := c.rdb.Get(ctx, productKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal product %s: %w", productID, err)
	}
	return &product, true, nil
}

// InvalidateProducts drops the cached entries for the given products
func (c *Client) InvalidateProducts(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}

	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = productKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// pendingOrder marks a key whose first request has not committed yet.
const pendingOrder = "pending"

// ReserveOrderKey claims a user's idempotency key with SETNX. If the key is
// taken it returns the recorded order id, or "" while that request runs.
func (c *Client) ReserveOrderKey(ctx context.Context, userID, key string, ttl time.Duration) (string, bool, error) {
	k := idempotencyKey(userID, key)

	// Two rounds cover a key expiring between SETNX and GET.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := c.rdb.SetNX(ctx, k, pendingOrder, ttl).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return "", true, nil
		}

		value, err := c.rdb.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", false, err
		}
		if value == pendingOrder {
			return "", false, nil
		}
		return value, false, nil
	}
	return "", false, fmt.Errorf("idempotency key %s kept expiring", k)
}

// CompleteOrderKey records the order a reserved key produced
func (c *Client) CompleteOrderKey(ctx context.Context, userID, key, orderID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(userID, key), orderID, ttl).Err()
}

// ReleaseOrderKey frees a reserved key after a failed attempt
func (c *Client) ReleaseOrderKey(ctx context.Context, userID, key string) error {
	return c.rdb.Del(ctx, idempotencyKey(userID, key)).Err()
}
