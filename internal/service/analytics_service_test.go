package service

import (
	"context"
	"testing"

	"checkout-service/internal/models"
	"checkout-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSalesSummary(t *testing.T) {
	f := newFixture(store.NewMemoryStore())
	ctx := context.Background()

	empty, err := f.analytics.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalSales)
	assert.True(t, empty.TotalRevenue.IsZero())

	a := seedProduct(t, f.store, "Lamp", "12.50", 10)
	b := seedProduct(t, f.store, "Desk", "100", 10)
	alice, bob := models.NewID(), models.NewID()

	_, err = f.orders.CreateOrder(ctx, alice, []models.OrderItem{line(a, 2)}, nil, "")
	require.NoError(t, err)
	_, err = f.orders.CreateOrder(ctx, alice, []models.OrderItem{line(b, 1)}, nil, "")
	require.NoError(t, err)
	_, err = f.orders.CreateOrder(ctx, bob, []models.OrderItem{line(a, 1), line(b, 1)}, nil, "")
	require.NoError(t, err)

	summary, err := f.analytics.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Customers)
	assert.Equal(t, 2, summary.Products)
	assert.Equal(t, 3, summary.TotalSales)
	assert.True(t, decimal.RequireFromString("237.50").Equal(summary.TotalRevenue), summary.TotalRevenue.String())
}
