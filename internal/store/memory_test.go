package store

import (
	"context"
	"errors"
	"testing"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, s *MemoryStore, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:   "Lamp",
		Price:  decimal.NewFromInt(20),
		Stock:  stock,
		Status: models.ProductStatusApproved,
		Images: []string{"lamp.png"},
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func TestMemoryStoreProductCopiesAreIsolated(t *testing.T) {
	s := NewMemoryStore()
	p := seedProduct(t, s, 3)

	got, err := s.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	got.Images[0] = "changed.png"
	got.Stock = 100

	again, err := s.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "lamp.png", again.Images[0])
	assert.Equal(t, 3, again.Stock)
}

func TestMemoryStoreMissingDocuments(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetProduct(ctx, models.NewID())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetCart(ctx, models.NewID())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetOrder(ctx, models.NewID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreWithTxCommits(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := seedProduct(t, s, 5)

	order := &models.Order{UserID: "u1", Items: []models.OrderItem{{ProductID: p.ID, Quantity: 2}}}
	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		left, err := tx.DecrementStock(ctx, p.ID, 2)
		if err != nil {
			return err
		}
		assert.Equal(t, 3, left)
		return tx.InsertOrder(ctx, order)
	})
	require.NoError(t, err)

	got, _ := s.GetProduct(ctx, p.ID)
	assert.Equal(t, 3, got.Stock)

	stored, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.UserID)
}

func TestMemoryStoreWithTxRollsBack(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := seedProduct(t, s, 5)
	boom := errors.New("boom")

	order := &models.Order{UserID: "u1"}
	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.DecrementStock(ctx, p.ID, 4); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, _ := s.GetProduct(ctx, p.ID)
	assert.Equal(t, 5, got.Stock)

	orders, _ := s.ListOrdersByUser(ctx, "u1")
	assert.Empty(t, orders)
}

func TestMemoryTxSeesItsOwnDecrements(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := seedProduct(t, s, 3)

	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.DecrementStock(ctx, p.ID, 2)
		require.NoError(t, err)

		current, err := tx.GetProductForUpdate(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, current.Stock)

		_, err = tx.DecrementStock(ctx, p.ID, 2)
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	got, _ := s.GetProduct(ctx, p.ID)
	assert.Equal(t, 3, got.Stock)
}

func TestMemoryStoreListProductsFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProduct(t, s, 2)
	seedProduct(t, s, 0)
	pending := &models.Product{Name: "Chair", Stock: 4, Status: models.ProductStatusPending, SellerID: "s1"}
	require.NoError(t, s.CreateProduct(ctx, pending))

	visible, err := s.ListProducts(ctx, ProductFilter{Status: models.ProductStatusApproved, InStockOnly: true})
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	mine, err := s.ListProducts(ctx, ProductFilter{SellerID: "s1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, pending.ID, mine[0].ID)
}

func TestMemoryStoreSaveCartReplaces(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	cart := models.NewCart("u1")
	cart.Items = append(cart.Items, models.CartItem{ProductID: "p", Quantity: 1, Price: decimal.NewFromInt(2)})
	cart.Recalculate()
	require.NoError(t, s.SaveCart(ctx, cart))

	cart.Clear()
	require.NoError(t, s.SaveCart(ctx, cart))

	got, err := s.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.True(t, got.Total.IsZero())
}

func TestMemoryStoreCategories(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	chairs := &models.Category{Name: "Chairs"}
	require.NoError(t, s.CreateCategory(ctx, chairs))
	require.NoError(t, s.CreateCategory(ctx, &models.Category{Name: "Beds"}))

	err := s.CreateCategory(ctx, &models.Category{Name: "chairs"})
	assert.True(t, errors.Is(err, ErrDuplicate))

	list, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Beds", list[0].Name)

	require.NoError(t, s.DeleteCategory(ctx, chairs.ID))
	_, err = s.GetCategory(ctx, chairs.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.DeleteCategory(ctx, chairs.ID), ErrNotFound))
}

func TestMemoryStoreSalesSummary(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := seedProduct(t, s, 10)
	pending := seedProduct(t, s, 10)
	require.NoError(t, s.SetProductStatus(ctx, pending.ID, models.ProductStatusPending))

	empty, err := s.SalesSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalSales)
	assert.True(t, empty.TotalRevenue.IsZero())

	buyer := models.NewID()
	for _, user := range []string{buyer, buyer, models.NewID()} {
		err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			if _, err := tx.DecrementStock(ctx, p.ID, 1); err != nil {
				return err
			}
			return tx.InsertOrder(ctx, &models.Order{
				UserID:      user,
				Items:       []models.OrderItem{{ProductID: p.ID, Quantity: 1, Price: p.Price}},
				TotalAmount: p.Price,
			})
		})
		require.NoError(t, err)
	}

	summary, err := s.SalesSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Products)
	assert.Equal(t, 3, summary.TotalSales)
	assert.Equal(t, 2, summary.Customers)
	assert.True(t, decimal.NewFromInt(60).Equal(summary.TotalRevenue))
}
