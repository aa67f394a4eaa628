// Package store defines the persistence contract shared by the Mongo,
// Postgres and in-memory backends.
package store

import (
	"context"
	"errors"

	"checkout-service/internal/models"
)

var (
	// ErrNotFound is returned when a product, category, cart or order does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write collides with a unique key.
	ErrDuplicate = errors.New("duplicate")
	// ErrInsufficientStock is returned by a guarded decrement that would
	// drive stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductFilter narrows ListProducts. Zero values match everything.
type ProductFilter struct {
	Status      string
	SellerID    string
	CategoryID  string
	InStockOnly bool
}

// Store is the persistence layer used by the services.
type Store interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	// UpdateProduct writes the descriptive fields (name, description, price,
	// category, images). Stock and status have their own writers.
	UpdateProduct(ctx context.Context, product *models.Product) error
	SetProductStatus(ctx context.Context, id, status string) error
	SetProductStock(ctx context.Context, id string, stock int) error
	DeleteProduct(ctx context.Context, id string) error

	// CreateCategory fails with ErrDuplicate when the name is taken.
	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error

	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	// SalesSummary counts approved products and aggregates every order.
	SalesSummary(ctx context.Context) (*models.SalesSummary, error)

	// WithTx runs fn inside one atomic unit of work. If fn returns an error
	// nothing it wrote is kept.
	WithTx(ctx context.Context, fn TxFunc) error

	Ping(ctx context.Context) error
	Close() error
}

// TxFunc is the body of a unit of work.
type TxFunc func(ctx context.Context, tx Tx) error

// Tx is the set of writes allowed inside a unit of work.
type Tx interface {
	// GetProductForUpdate reads a product so that conflicting units of
	// work touching the same product are serialised.
	GetProductForUpdate(ctx context.Context, id string) (*models.Product, error)
	// DecrementStock subtracts quantity and returns the new stock. It fails
	// with ErrInsufficientStock instead of going negative.
	DecrementStock(ctx context.Context, id string, quantity int) (int, error)
	InsertOrder(ctx context.Context, order *models.Order) error
}
