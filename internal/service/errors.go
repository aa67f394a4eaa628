package service

import (
	"errors"
	"fmt"
)

// Domain errors returned by the services. Handlers map them to status codes.
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrCartNotFound      = errors.New("cart not found")
	ErrItemNotFound      = errors.New("product not found in cart")
	ErrOrderNotFound     = errors.New("order not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrCategoryExists    = errors.New("category already exists")
	ErrCategoryInUse     = errors.New("category still has products")
	ErrOutOfStock        = errors.New("out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("forbidden")
	ErrDuplicateRequest  = errors.New("a request with this idempotency key is already in progress")
)

// StockError identifies the product that could not cover a requested quantity.
// It unwraps to ErrOutOfStock or ErrInsufficientStock.
type StockError struct {
	Kind      error
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	if errors.Is(e.Kind, ErrInsufficientStock) {
		return fmt.Sprintf("Insufficient stock for product %s", name)
	}
	return fmt.Sprintf("Out of stock: %s has %d available, %d requested", name, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error {
	return e.Kind
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
