package service

import (
	"context"
	"errors"
	"fmt"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CartService maintains each user's cart. Stock checks here are a
// point-in-time read; checkout re-validates under the unit of work.
type CartService struct {
	store  store.Store
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(st store.Store) *CartService {
	return &CartService{
		store:  st,
		logger: util.Named("cart"),
	}
}

// CartLine is a cart line joined with the product's live display fields.
// Price here is for display only.
type CartLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

func recordCartMutation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	util.CartMutationsTotal.WithLabelValues(operation, outcome).Inc()
}

// AddItem adds quantity units of a product, creating the cart on first use.
// Adding a product already in the cart increases its quantity.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (cart *models.Cart, err error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem",
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
	)
	defer func() {
		recordCartMutation("add", err)
		util.EndSpan(span, err)
	}()

	if !models.IsValidID(productID) {
		return nil, invalidInput("invalid product id %q", productID)
	}
	if quantity < 1 {
		return nil, invalidInput("quantity must be at least 1")
	}

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, mapProductErr(err)
	}
	if quantity > product.Stock {
		return nil, &StockError{
			Kind:      ErrOutOfStock,
			ProductID: product.ID,
			Name:      product.Name,
			Requested: quantity,
			Available: product.Stock,
		}
	}

	cart, err = s.loadCart(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		cart = models.NewCart(userID)
	} else if err != nil {
		return nil, err
	}

	if i := cart.FindItem(productID); i >= 0 {
		cart.Items[i].Quantity += quantity
	} else {
		cart.Items = append(cart.Items, models.CartItem{
			ProductID: productID,
			Quantity:  quantity,
			Price:     product.Price,
		})
	}

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}

	s.logger.Debug("Item added to cart",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.Int("quantity", quantity))
	return cart, nil
}

// SetItemQuantity replaces the quantity of a line. Zero removes the line.
func (s *CartService) SetItemQuantity(ctx context.Context, userID, productID string, quantity int) (cart *models.Cart, err error) {
	ctx, span := util.StartSpan(ctx, "CartService.SetItemQuantity",
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
	)
	defer func() {
		recordCartMutation("set_quantity", err)
		util.EndSpan(span, err)
	}()

	if quantity < 0 {
		return nil, invalidInput("quantity must not be negative")
	}

	cart, err = s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Lines only ever hold valid ids.
	if !models.IsValidID(productID) {
		return nil, ErrItemNotFound
	}

	// Removing a line does not need the product, which may be gone already.
	var product *models.Product
	if quantity > 0 {
		product, err = s.store.GetProduct(ctx, productID)
		if err != nil {
			return nil, mapProductErr(err)
		}
	}

	i := cart.FindItem(productID)
	if i < 0 {
		return nil, ErrItemNotFound
	}

	if quantity == 0 {
		cart.RemoveAt(i)
	} else {
		if quantity > product.Stock {
			return nil, &StockError{
				Kind:      ErrOutOfStock,
				ProductID: product.ID,
				Name:      product.Name,
				Requested: quantity,
				Available: product.Stock,
			}
		}
		cart.Items[i].Quantity = quantity
	}

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem drops the line for a product
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (cart *models.Cart, err error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer func() {
		recordCartMutation("remove", err)
		util.EndSpan(span, err)
	}()

	cart, err = s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := cart.FindItem(productID)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	cart.RemoveAt(i)

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Clear empties an existing cart. Clearing an empty cart succeeds.
func (s *CartService) Clear(ctx context.Context, userID string) (cart *models.Cart, err error) {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer func() {
		recordCartMutation("clear", err)
		util.EndSpan(span, err)
	}()

	cart, err = s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.Clear()
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// GetCart returns the user's stored cart
func (s *CartService) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	return s.loadCart(ctx, userID)
}

// ListItems returns the cart lines with live product details. Lines whose
// product no longer exists are dropped and the pruned cart is saved.
func (s *CartService) ListItems(ctx context.Context, userID string) (lines []CartLine, err error) {
	ctx, span := util.StartSpan(ctx, "CartService.ListItems")
	defer func() { util.EndSpan(span, err) }()

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}

	byID := make(map[string]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	lines = make([]CartLine, 0, len(cart.Items))
	kept := make([]models.CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		product, ok := byID[item.ProductID]
		if !ok {
			continue
		}
		kept = append(kept, item)
		lines = append(lines, CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Image:     product.PrimaryImage(),
			Quantity:  item.Quantity,
		})
	}

	if pruned := len(cart.Items) - len(kept); pruned > 0 {
		cart.Items = kept
		if err := s.save(ctx, cart); err != nil {
			return nil, err
		}
		util.CartItemsPruned.Add(float64(pruned))
		s.logger.Info("Pruned missing products from cart",
			zap.String("user_id", userID),
			zap.Int("pruned", pruned))
	}

	return lines, nil
}

func (s *CartService) loadCart(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.store.GetCart(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) save(ctx context.Context, cart *models.Cart) error {
	cart.Recalculate()
	if err := s.store.SaveCart(ctx, cart); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}
