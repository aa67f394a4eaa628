package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "product:abc", productKey("abc"))
	assert.Equal(t, "idempotency:u1:k1", idempotencyKey("u1", "k1"))
}

func openTestClient(t *testing.T) *Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires Redis (set TEST_REDIS_ADDR)")
	}

	c, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestProductCache(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()

	p := &models.Product{ID: models.NewID(), Name: "Desk", Price: decimal.NewFromInt(99), Stock: 2}
	require.NoError(t, c.CacheProduct(ctx, p, time.Minute))

	got, ok, err := c.GetCachedProduct(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p.Name, got.Name)
	assert.True(t, p.Price.Equal(got.Price))

	require.NoError(t, c.InvalidateProducts(ctx, p.ID))
	_, ok, err = c.GetCachedProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPing(t *testing.T) {
	c := openTestClient(t)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestReserveOrderKey(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()
	user, key := models.NewID(), models.NewID()

	_, reserved, err := c.ReserveOrderKey(ctx, user, key, time.Minute)
	require.NoError(t, err)
	require.True(t, reserved)

	orderID, reserved, err := c.ReserveOrderKey(ctx, user, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Empty(t, orderID, "first request has not committed")

	require.NoError(t, c.CompleteOrderKey(ctx, user, key, "order-1", time.Minute))
	orderID, reserved, err = c.ReserveOrderKey(ctx, user, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Equal(t, "order-1", orderID)
}

func TestReleaseOrderKey(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()
	user, key := models.NewID(), models.NewID()

	_, reserved, err := c.ReserveOrderKey(ctx, user, key, time.Minute)
	require.NoError(t, err)
	require.True(t, reserved)

	require.NoError(t, c.ReleaseOrderKey(ctx, user, key))

	_, reserved, err = c.ReserveOrderKey(ctx, user, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved)
}
