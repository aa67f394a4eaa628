package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu           sync.Mutex
	orders       []*models.OrderCreatedEvent
	stockChanges []*models.StockChangedEvent
	err          error
}

func (p *fakePublisher) PublishOrderCreated(_ context.Context, event *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, event)
	return p.err
}

func (p *fakePublisher) PublishStockChanged(_ context.Context, event *models.StockChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stockChanges = append(p.stockChanges, event)
	return p.err
}

type fakeIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: make(map[string]string)}
}

func (f *fakeIdempotency) ReserveOrderKey(_ context.Context, userID, key string, _ time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.keys[userID+":"+key]; ok {
		return id, false, nil
	}
	f.keys[userID+":"+key] = ""
	return "", true, nil
}

func (f *fakeIdempotency) CompleteOrderKey(_ context.Context, userID, key, orderID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[userID+":"+key] = orderID
	return nil
}

func (f *fakeIdempotency) ReleaseOrderKey(_ context.Context, userID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, userID+":"+key)
	return nil
}

type fakeCache struct {
	mu          sync.Mutex
	products    map[string]models.Product
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{products: make(map[string]models.Product)}
}

func (c *fakeCache) CacheProduct(_ context.Context, product *models.Product, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = *product
	return nil
}

func (c *fakeCache) GetCachedProduct(_ context.Context, productID string) (*models.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[productID]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (c *fakeCache) InvalidateProducts(_ context.Context, productIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range productIDs {
		delete(c.products, id)
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}

// failingInsertStore aborts every unit of work at the order insert, after
// the stock decrements have been staged.
type failingInsertStore struct {
	*store.MemoryStore
}

func (s failingInsertStore) WithTx(ctx context.Context, fn store.TxFunc) error {
	return s.MemoryStore.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, failingInsertTx{tx})
	})
}

type failingInsertTx struct {
	store.Tx
}

func (failingInsertTx) InsertOrder(context.Context, *models.Order) error {
	return errors.New("write conflict")
}

type fixture struct {
	store     store.Store
	category  *models.Category
	publisher *fakePublisher
	idem      *fakeIdempotency
	cache     *fakeCache
	ledger    *InventoryLedger
	carts     *CartService
	orders    *OrderService
	catalog   *CatalogService
	cats      *CategoryService
	analytics *AnalyticsService
}

func newFixture(st store.Store) *fixture {
	f := &fixture{
		store:     st,
		publisher: &fakePublisher{},
		idem:      newFakeIdempotency(),
		cache:     newFakeCache(),
	}
	f.ledger = NewInventoryLedger(st, f.cache, f.publisher)
	f.carts = NewCartService(st)
	f.orders = NewOrderService(st, f.ledger, f.carts, f.publisher, f.idem, time.Hour)
	f.catalog = NewCatalogService(st, f.ledger, f.cache, time.Minute)
	f.cats = NewCategoryService(st)
	f.analytics = NewAnalyticsService(st)

	f.category = &models.Category{Name: "Furniture"}
	if err := st.CreateCategory(context.Background(), f.category); err != nil {
		panic(err)
	}
	return f
}

func seedProduct(t *testing.T, st store.Store, name, price string, stock int) *models.Product {
	t.Helper()

	p := &models.Product{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		Status:     models.ProductStatusApproved,
		SellerID:   models.NewID(),
		CategoryID: models.NewID(),
		Images:     []string{name + ".jpg"},
	}
	require.NoError(t, st.CreateProduct(context.Background(), p))
	return p
}

func stockOf(t *testing.T, st store.Store, productID string) int {
	t.Helper()

	p, err := st.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func line(p *models.Product, quantity int) models.OrderItem {
	return models.OrderItem{ProductID: p.ID, Quantity: quantity, Price: p.Price}
}
