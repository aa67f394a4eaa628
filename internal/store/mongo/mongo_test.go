package mongo

import (
	"context"
	"os"
	"sync"
	"testing"

	"checkout-service/internal/models"
	"checkout-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("Integration test - requires a MongoDB replica set (set TEST_MONGODB_URI)")
	}

	s, err := NewStore(context.Background(), uri, "checkout_test")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDecimalConversion(t *testing.T) {
	d := decimal.RequireFromString("1234.56")

	v, err := toDecimal128(d)
	require.NoError(t, err)

	back, err := fromDecimal128(v)
	require.NoError(t, err)
	assert.True(t, d.Equal(back))
}

func TestParseIDRejectsGarbage(t *testing.T) {
	_, err := parseID("product", "xyz")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentLastUnit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &models.Product{
		Name:     "Last one",
		Price:    decimal.NewFromInt(10),
		Stock:    1,
		Status:   models.ProductStatusApproved,
		SellerID: models.NewID(),
	}
	require.NoError(t, s.CreateProduct(ctx, p))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
				if _, err := tx.DecrementStock(ctx, p.ID, 1); err != nil {
					return err
				}
				return tx.InsertOrder(ctx, &models.Order{
					UserID:      models.NewID(),
					Items:       []models.OrderItem{{ProductID: p.ID, Quantity: 1, Price: p.Price}},
					TotalAmount: p.Price,
				})
			})
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, store.ErrInsufficientStock)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestCategories(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	name := "Garden " + models.NewID()
	c := &models.Category{Name: name}
	require.NoError(t, s.CreateCategory(ctx, c))

	err := s.CreateCategory(ctx, &models.Category{Name: name})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	got, err := s.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)

	require.NoError(t, s.DeleteCategory(ctx, c.ID))
	assert.ErrorIs(t, s.DeleteCategory(ctx, c.ID), store.ErrNotFound)
}

func TestSalesSummaryCountsOrders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	before, err := s.SalesSummary(ctx)
	require.NoError(t, err)

	price := decimal.RequireFromString("7.50")
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
