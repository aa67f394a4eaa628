package worker

import (
	"context"
	"errors"
	"testing"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	evicted []string
	err     error
}

func (r *recordingInvalidator) InvalidateProducts(_ context.Context, productIDs ...string) error {
	if r.err != nil {
		return r.err
	}
	r.evicted = append(r.evicted, productIDs...)
	return nil
}

func TestHandleOrderCreatedEvictsEveryLine(t *testing.T) {
	cache := &recordingInvalidator{}
	w := NewCacheWorker(nil, cache)

	a, b := models.NewID(), models.NewID()
	event := models.NewOrderCreatedEvent(&models.Order{
		ID:     models.NewID(),
		UserID: models.NewID(),
		Items: []models.OrderItem{
			{ProductID: a, Quantity: 1, Price: decimal.NewFromInt(2)},
			{ProductID: b, Quantity: 3, Price: decimal.NewFromInt(1)},
		},
		TotalAmount: decimal.NewFromInt(5),
	})

	require.NoError(t, w.HandleOrderCreated(context.Background(), event))
	assert.Equal(t, []string{a, b}, cache.evicted)
}

func TestHandleStockChangedPropagatesFailure(t *testing.T) {
	cache := &recordingInvalidator{err: errors.New("redis unavailable")}
	w := NewCacheWorker(nil, cache)

	err := w.HandleStockChanged(context.Background(), &models.StockChangedEvent{ProductID: "p1", Stock: 2})
	assert.ErrorContains(t, err, "redis unavailable")
}
