package postgres

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"checkout-service/internal/models"
	"checkout-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database (set TEST_DATABASE_URL)")
	}

	s, err := NewStore(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDecrementStockIsGuarded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &models.Product{
		Name:     "Kettle",
		Price:    decimal.RequireFromString("25.00"),
		Stock:    2,
		Status:   models.ProductStatusApproved,
		SellerID: models.NewID(),
	}
	require.NoError(t, s.CreateProduct(ctx, p))

	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.DecrementStock(ctx, p.ID, 3)
		return err
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
}

func TestWithTxRollsBackOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	userID := models.NewID()

	p := &models.Product{
		Name:     "Mug",
		Price:    decimal.RequireFromString("4.50"),
		Stock:    5,
		Status:   models.ProductStatusApproved,
		SellerID: models.NewID(),
	}
	require.NoError(t, s.CreateProduct(ctx, p))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.DecrementStock(ctx, p.ID, 1); err != nil {
			return err
		}
		order := &models.Order{
			UserID:      userID,
			Items:       []models.OrderItem{{ProductID: p.ID, Quantity: 1, Price: p.Price}},
			TotalAmount: p.Price,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)

	orders, err := s.ListOrdersByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCartRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cart := models.NewCart(models.NewID())
	cart.Items = append(cart.Items,
		models.CartItem{ProductID: models.NewID(), Quantity: 2, Price: decimal.RequireFromString("1.25")})
	cart.Recalculate()
	require.NoError(t, s.SaveCart(ctx, cart))

	got, err := s.GetCart(ctx, cart.UserID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, cart.Total.Equal(got.Total))
}

func TestCategoryNamesAreUnique(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	name := "Lighting " + models.NewID()
	c := &models.Category{Name: name, Description: "Lamps"}
	require.NoError(t, s.CreateCategory(ctx, c))
	t.Cleanup(func() { s.DeleteCategory(context.Background(), c.ID) })

	err := s.CreateCategory(ctx, &models.Category{Name: strings.ToUpper(name)})
	assert.True(t, errors.Is(err, store.ErrDuplicate))

	got, err := s.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)

	require.NoError(t, s.DeleteCategory(ctx, c.ID))
	_, err = s.GetCategory(ctx, c.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestSalesSummaryCountsOrders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	before, err := s.SalesSummary(ctx)
	require.NoError(t, err)

	price := decimal.RequireFromString("12.34")
	err = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertOrder(ctx, &models.Order{
			UserID:      models.NewID(),
			Items:       []models.OrderItem{{ProductID: models.NewID(), Quantity: 1, Price: price}},
			TotalAmount: price,
		})
	})
	require.NoError(t, err)

	after, err := s.SalesSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.TotalSales+1, after.TotalSales)
	assert.Equal(t, before.Customers+1, after.Customers)
	assert.True(t, before.TotalRevenue.Add(price).Equal(after.TotalRevenue))
}
