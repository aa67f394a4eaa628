package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
)

// MemoryStore keeps everything in process. Units of work are serialised and
// staged, so a failed WithTx leaves no trace.
type MemoryStore struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	products   map[string]models.Product
	categories map[string]models.Category
	carts      map[string]models.Cart
	orders     map[string]models.Order
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:   make(map[string]models.Product),
		categories: make(map[string]models.Category),
		carts:      make(map[string]models.Cart),
		orders:     make(map[string]models.Order),
	}
}

func copyProduct(p models.Product) *models.Product {
	p.Images = append([]string(nil), p.Images...)
	return &p
}

func copyCart(c models.Cart) *models.Cart {
	c.Items = append([]models.CartItem{}, c.Items...)
	return &c
}

func copyOrder(o models.Order) *models.Order {
	o.Items = append([]models.OrderItem{}, o.Items...)
	return &o
}

// GetProduct retrieves a product by ID
func (s *MemoryStore) GetProduct(_ context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return copyProduct(p), nil
}

// GetProductsByIDs retrieves the products that exist among ids
func (s *MemoryStore) GetProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]models.Product, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := s.products[id]; ok {
			products = append(products, *copyProduct(p))
		}
	}
	return products, nil
}

// ListProducts returns products matching filter, newest first
func (s *MemoryStore) ListProducts(_ context.Context, filter ProductFilter) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]models.Product, 0)
	for _, p := range s.products {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.SellerID != "" && p.SellerID != filter.SellerID {
			continue
		}
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.InStockOnly && p.Stock <= 0 {
			continue
		}
		products = append(products, *copyProduct(p))
	}

	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

// CreateProduct inserts a product, assigning an ID when empty
func (s *MemoryStore) CreateProduct(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = models.NewID()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = *copyProduct(*product)
	return nil
}

// UpdateProduct writes the descriptive fields of an existing product
func (s *MemoryStore) UpdateProduct(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[product.ID]
	if !ok {
		return fmt.Errorf("product %s: %w", product.ID, ErrNotFound)
	}
	current.Name = product.Name
	current.Description = product.Description
	current.Price = product.Price
	current.CategoryID = product.CategoryID
	current.Images = append([]string(nil), product.Images...)
	current.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = current
	return nil
}

// SetProductStatus changes a product's lifecycle status
func (s *MemoryStore) SetProductStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return nil
}

// SetProductStock overwrites a product's stock
func (s *MemoryStore) SetProductStock(_ context.Context, id string, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	p.Stock = stock
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return nil
}

// DeleteProduct removes a product
func (s *MemoryStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	delete(s.products, id)
	return nil
}

// CreateCategory inserts a category with a unique name, ignoring case
func (s *MemoryStore) CreateCategory(_ context.Context, category *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.categories {
		if strings.EqualFold(c.Name, category.Name) {
			return fmt.Errorf("category %q: %w", category.Name, ErrDuplicate)
		}
	}
	if category.ID == "" {
		category.ID = models.NewID()
	}
	category.CreatedAt = time.Now().UTC()
	s.categories[category.ID] = *category
	return nil
}

// GetCategory retrieves a category by ID
func (s *MemoryStore) GetCategory(_ context.Context, id string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return &c, nil
}

// ListCategories returns every category ordered by name
func (s *MemoryStore) ListCategories(_ context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})
	return categories, nil
}

// DeleteCategory removes a category
func (s *MemoryStore) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	delete(s.categories, id)
	return nil
}

// GetCart retrieves a user's cart
func (s *MemoryStore) GetCart(_ context.Context, userID string) (*models.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[userID]
	if !ok {
		return nil, fmt.Errorf("cart for user %s: %w", userID, ErrNotFound)
	}
	return copyCart(c), nil
}

// SaveCart creates or replaces a user's cart
func (s *MemoryStore) SaveCart(_ context.Context, cart *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart.UpdatedAt = time.Now().UTC()
	s.carts[cart.UserID] = *copyCart(*cart)
	return nil
}

// GetOrder retrieves an order by ID
func (s *MemoryStore) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return copyOrder(o), nil
}

// ListOrdersByUser retrieves a user's orders, newest first
func (s *MemoryStore) ListOrdersByUser(_ context.Context, userID string) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]models.Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			orders = append(orders, *copyOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// SalesSummary aggregates approved products and committed orders
func (s *MemoryStore) SalesSummary(_ context.Context) (*models.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &models.SalesSummary{TotalRevenue: decimal.Zero}
	for _, p := range s.products {
		if p.Status == models.ProductStatusApproved {
			summary.Products++
		}
	}

	customers := make(map[string]bool)
	for _, o := range s.orders {
		summary.TotalSales++
		summary.TotalRevenue = summary.TotalRevenue.Add(o.TotalAmount)
		customers[o.UserID] = true
	}
	summary.Customers = len(customers)
	return summary, nil
}

// WithTx runs fn against staged state and publishes it only if fn succeeds
func (s *MemoryStore) WithTx(ctx context.Context, fn TxFunc) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryTx{store: s, decrements: make(map[string]int)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

// Ping always succeeds
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

type memoryTx struct {
	store      *MemoryStore
	decrements map[string]int
	orders     []models.Order
}

func (t *memoryTx) GetProductForUpdate(ctx context.Context, id string) (*models.Product, error) {
	p, err := t.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Stock -= t.decrements[id]
	return p, nil
}

func (t *memoryTx) DecrementStock(ctx context.Context, id string, quantity int) (int, error) {
	p, err := t.GetProductForUpdate(ctx, id)
	if err != nil {
		return 0, err
	}
	if p.Stock < quantity {
		return p.Stock, fmt.Errorf("product %s: %w", id, ErrInsufficientStock)
	}
	t.decrements[id] += quantity
	return p.Stock - quantity, nil
}

func (t *memoryTx) InsertOrder(_ context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = models.NewID()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	t.orders = append(t.orders, *copyOrder(*order))
	return nil
}

func (t *memoryTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stock may have been edited outside the unit of work since it was read.
	for id, qty := range t.decrements {
		p, ok := s.products[id]
		if !ok {
			return fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		if p.Stock < qty {
			return fmt.Errorf("product %s: %w", id, ErrInsufficientStock)
		}
	}

	now := time.Now().UTC()
	for id, qty := range t.decrements {
		p := s.products[id]
		p.Stock -= qty
		p.UpdatedAt = now
		s.products[id] = p
	}
	for _, o := range t.orders {
		s.orders[o.ID] = o
	}
	return nil
}
