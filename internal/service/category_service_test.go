package service

import (
	"context"
	"testing"

	"checkout-service/internal/models"
	"checkout-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCategory(t *testing.T) {
	f := newFixture(store.NewMemoryStore())
	ctx := context.Background()

	_, err := f.cats.Create(ctx, "   ", "blank")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.cats.Create(ctx, " furniture ", "")
	assert.ErrorIs(t, err, ErrCategoryExists)

	created, err := f.cats.Create(ctx, "  Bedding ", " Sheets and pillows ")
	require.NoError(t, err)
	assert.True(t, models.IsValidID(created.ID))
	assert.Equal(t, "Bedding", created.Name)
	assert.Equal(t, "Sheets and pillows", created.Description)

	listed, err := f.cats.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Bedding", listed[0].Name)
	assert.Equal(t, "Furniture", listed[1].Name)
}

func TestDeleteCategory(t *testing.T) {
	f := newFixture(store.NewMemoryStore())
	ctx := context.Background()

	assert.ErrorIs(t, f.cats.Delete(ctx, "furniture"), ErrInvalidInput)
	assert.ErrorIs(t, f.cats.Delete(ctx, models.NewID()), ErrCategoryNotFound)

	p := seedProduct(t, f.store, "Chair", "40", 2)
	p.CategoryID = f.category.ID
	require.NoError(t, f.store.UpdateProduct(ctx, p))

	assert.ErrorIs(t, f.cats.Delete(ctx, f.category.ID), ErrCategoryInUse)
	_, err := f.store.GetCategory(ctx, f.category.ID)
	require.NoError(t, err)

	require.NoError(t, f.store.DeleteProduct(ctx, p.ID))
	require.NoError(t, f.cats.Delete(ctx, f.category.ID))

	listed, err := f.cats.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = f.catalog.CreateProduct(ctx, Actor{UserID: models.NewID(), Role: models.RoleSeller}, f.listing())
	assert.ErrorIs(t, err, ErrInvalidInput)
}
