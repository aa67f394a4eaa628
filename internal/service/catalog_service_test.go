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

func (f *fixture) listing() ProductInput {
	return ProductInput{
		Name:        "Oak table",
		Description: "Solid oak",
		Price:       decimal.RequireFromString("250"),
		Stock:       3,
		CategoryID:  f.category.ID,
	}
}

func TestCreateProductStartsPending(t *testing.T) {
	f := newFixture(store.NewMemoryStore())
	ctx := context.Background()
	seller := Actor{UserID: models.NewID(), Role: models.RoleSeller}
	customer := Actor{UserID: models.NewID(), Role: models.RoleCustomer}

	_, err := f.catalog.CreateProduct(ctx, customer, f.listing())
	assert.ErrorIs(t, err, ErrForbidden)

	p, err := f.catalog.CreateProduct(ctx, seller, f.listing())
	require.NoError(t, err)
	assert.Equal(t, models.ProductStatusPending, p.Status)
	assert.Equal(t, seller.UserID, p.SellerID)

	_, err = f.catalog.GetProduct(ctx, customer, p.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)

	own, err := f.catalog.GetProduct(ctx, seller, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, own.ID)

	pending, err := f.catalog.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = f.catalog.Approve(ctx, p.ID)
	require.NoError(t, err)

	visible, err := f.catalog.ListVisible(ctx, "")
	require.NoError(t, err)
	require.Len(t, visible, 1)

	got, err := f.catalog.GetProduct(ctx, customer, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProductStatusApproved, got.Status)
}

func TestCreateProductValidation(t *testing.T) {
	f := newFixture(store.NewMemoryStore())
	seller := Actor{UserID: models.NewID(), Role: models.RoleSeller}

	noName := f.listing()
	noName.Name = " "
	negative := f.listing()
	negative.Price = decimal.NewFromInt(-5)
	subCent := f.listing()
	subCent.Price = decimal.RequireFromString("9.999")
	badCategory := f.listing()
	badCategory.CategoryID = "furniture"
	unknownCategory := f.listing()
	unknownCategory.CategoryID = models.NewID()

	for _, input := range []ProductInput{noName, negative, subCent, badCategory, unknownCategory} {
		_, err := f.catalog.CreateProduct(context.Background(), seller, input)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestRejectHidesProduct(t *testing.T) {
	st := store.NewMemoryStore()
	f := newFixture(st)
	ctx := context.Background()
	p := seedProduct(t, st, "ladder", "60", 2)

	_, err := f.catalog.Reject(ctx, p.ID)
	require.NoError(t, err)

	visible, err := f.catalog.ListVisible(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, visible)

	_, err = f.catalog.Approve(ctx, models.NewID())
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestUpdateProductOwnership(t *testing.T) {
	f := newFixture(store.NewMemoryStore())
	ctx := context.Background()
	seller := Actor{UserID: models.NewID(), Role: models.RoleSeller}
	rival := Actor{UserID: models.NewID(), Role: models.RoleSeller}

	p, err := f.catalog.CreateProduct(ctx, seller, f.listing())
	require.NoError(t, err)

	name := "Walnut table"
	_, err = f.catalog.UpdateProduct(ctx, rival, p.ID, ProductUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.catalog.UpdateProduct(ctx, seller, p.ID, ProductUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, 3, updated.Stock)

	subCent := decimal.RequireFromString("0.125")
	_, err = f.catalog.UpdateProduct(ctx, seller, p.ID, ProductUpdate{Price: &subCent})
	assert.ErrorIs(t, err, ErrInvalidInput)

	unknown := models.NewID()
	_, err = f.catalog.UpdateProduct(ctx, seller, p.ID, ProductUpdate{CategoryID: &unknown})
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, err := f.store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("250").Equal(got.Price))
	assert.Equal(t, f.category.ID, got.CategoryID)
}

func TestUpdateStockGoesThroughLedger(t *testing.T) {
	st := store.NewMemoryStore()
	f := newFixture(st)
	ctx := context.Background()
	seller := Actor{UserID: models.NewID(), Role: models.RoleSeller}

	p, err := f.catalog.CreateProduct(ctx, seller, f.listing())
	require.NoError(t, err)

	stock := 9
	_, err = f.catalog.UpdateProduct(ctx, seller, p.ID, ProductUpdate{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, 9, stockOf(t, st, p.ID))

	require.Len(t, f.publisher.stockChanges, 1)
	assert.Equal(t, p.ID, f.publisher.stockChanges[0].ProductID)
	assert.Equal(t, 9, f.publisher.stockChanges[0].Stock)
	assert.Contains(t, f.cache.invalidated, p.ID)

	negative := -1
	_, err = f.catalog.UpdateProduct(ctx, seller, p.ID, ProductUpdate{Stock: &negative})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 9, stockOf(t, st, p.ID))
}

func TestDeleteProductOwnerOrAdmin(t *testing.T) {
	f := newFixture(store.NewMemoryStore())
	ctx := context.Background()
	seller := Actor{UserID: models.NewID(), Role: models.RoleSeller}
	rival := Actor{UserID: models.NewID(), Role: models.RoleSeller}
	admin := Actor{UserID: models.NewID(), Role: models.RoleAdmin}

	first, err := f.catalog.CreateProduct(ctx, seller, f.listing())
	require.NoError(t, err)
	second, err := f.catalog.CreateProduct(ctx, seller, f.listing())
	require.NoError(t, err)

	assert.ErrorIs(t, f.catalog.DeleteProduct(ctx, rival, first.ID), ErrForbidden)
	require.NoError(t, f.catalog.DeleteProduct(ctx, seller, first.ID))
	require.NoError(t, f.catalog.DeleteProduct(ctx, admin, second.ID))
	assert.ErrorIs(t, f.catalog.DeleteProduct(ctx, admin, second.ID), ErrProductNotFound)

	mine, err := f.catalog.ListBySeller(ctx, seller.UserID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestGetProductUsesCache(t *testing.T) {
	st := store.NewMemoryStore()
	f := newFixture(st)
	ctx := context.Background()
	customer := Actor{UserID: models.NewID(), Role: models.RoleCustomer}
	p := seedProduct(t, st, "rope", "4", 6)

	_, err := f.catalog.GetProduct(ctx, customer, p.ID)
	require.NoError(t, err)

	cached, ok, err := f.cache.GetCachedProduct(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rope", cached.Name)

	// A cache hit is served without the store.
	require.NoError(t, st.DeleteProduct(ctx, p.ID))
	got, err := f.catalog.GetProduct(ctx, customer, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestLedgerGetStock(t *testing.T) {
	st := store.NewMemoryStore()
	f := newFixture(st)
	p := seedProduct(t, st, "nail", "0.05", 100)

	stock, err := f.ledger.GetStock(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stock)

	_, err = f.ledger.GetStock(context.Background(), models.NewID())
	assert.ErrorIs(t, err, ErrProductNotFound)
}
