package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService handles product listings and their approval lifecycle
type CatalogService struct {
	store    store.Store
	ledger   *InventoryLedger
	cache    ProductCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service. cache may be nil.
func NewCatalogService(st store.Store, ledger *InventoryLedger, cache ProductCache, cacheTTL time.Duration) *CatalogService {
	return &CatalogService{
		store:    st,
		ledger:   ledger,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.Named("catalog"),
	}
}

// ProductInput is the payload for a new listing
type ProductInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CategoryID  string          `json:"category"`
	Images      []string        `json:"images"`
}

// ProductUpdate holds the fields a seller may change. Nil fields are kept.
type ProductUpdate struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	CategoryID  *string          `json:"category"`
	Images      []string         `json:"images"`
}

// ListVisible returns approved products with stock, optionally in one category
func (s *CatalogService) ListVisible(ctx context.Context, categoryID string) ([]models.Product, error) {
	if categoryID != "" && !models.IsValidID(categoryID) {
		return nil, invalidInput("invalid category id %q", categoryID)
	}
	return s.store.ListProducts(ctx, store.ProductFilter{
		Status:      models.ProductStatusApproved,
		CategoryID:  categoryID,
		InStockOnly: true,
	})
}

// ListBySeller returns every product owned by a seller
func (s *CatalogService) ListBySeller(ctx context.Context, sellerID string) ([]models.Product, error) {
	return s.store.ListProducts(ctx, store.ProductFilter{SellerID: sellerID})
}

// ListPending returns products awaiting review
func (s *CatalogService) ListPending(ctx context.Context) ([]models.Product, error) {
	return s.store.ListProducts(ctx, store.ProductFilter{Status: models.ProductStatusPending})
}

// GetProduct returns a product the actor may see. Customers only see visible
// products; sellers also see their own and admins see everything.
func (s *CatalogService) GetProduct(ctx context.Context, actor Actor, productID string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	if !models.IsValidID(productID) {
		return nil, invalidInput("invalid product id %q", productID)
	}

	product, err := s.lookup(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Visible() && !actor.IsAdmin() && product.SellerID != actor.UserID {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func (s *CatalogService) lookup(ctx context.Context, productID string) (*models.Product, error) {
	if s.cache != nil {
		product, ok, err := s.cache.GetCachedProduct(ctx, productID)
		switch {
		case err != nil:
			util.ProductCacheLookups.WithLabelValues("error").Inc()
			s.logger.Warn("Product cache read failed",
				zap.String("product_id", productID),
				zap.Error(err))
		case ok:
			util.ProductCacheLookups.WithLabelValues("hit").Inc()
			return product, nil
		default:
			util.ProductCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, mapProductErr(err)
	}

	if s.cache != nil {
		if err := s.cache.CacheProduct(ctx, product, s.cacheTTL); err != nil {
			s.logger.Warn("Failed to cache product",
				zap.String("product_id", productID),
				zap.Error(err))
		}
	}
	return product, nil
}

// CreateProduct stores a new listing in pending status
func (s *CatalogService) CreateProduct(ctx context.Context, actor Actor, input ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	if actor.Role != models.RoleSeller && !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	name := strings.TrimSpace(input.Name)
	switch {
	case name == "" || strings.TrimSpace(input.Description) == "":
		return nil, invalidInput("name and description are required")
	case input.Price.IsNegative():
		return nil, invalidInput("price must not be negative")
	case !models.FitsPriceScale(input.Price):
		return nil, invalidInput("price must have at most %d decimal places", models.PriceScale)
	case input.Stock < 0:
		return nil, invalidInput("stock must not be negative")
	}
	if err := s.requireCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	images := input.Images
	if images == nil {
		images = []string{}
	}

	product := &models.Product{
		Name:        name,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		Status:      models.ProductStatusPending,
		SellerID:    actor.UserID,
		CategoryID:  input.CategoryID,
		Images:      images,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("seller_id", actor.UserID))
	return product, nil
}

// UpdateProduct applies a seller's edit to one of their own products.
// Stock edits go through the inventory ledger.
func (s *CatalogService) UpdateProduct(ctx context.Context, actor Actor, productID string, update ProductUpdate) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	product, err := s.loadForWrite(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != actor.UserID {
		return nil, ErrForbidden
	}

	if update.Name != nil {
		if strings.TrimSpace(*update.Name) == "" {
			return nil, invalidInput("name must not be empty")
		}
		product.Name = strings.TrimSpace(*update.Name)
	}
	if update.Description != nil {
		product.Description = *update.Description
	}
	if update.Price != nil {
		if update.Price.IsNegative() {
			return nil, invalidInput("price must not be negative")
		}
		if !models.FitsPriceScale(*update.Price) {
			return nil, invalidInput("price must have at most %d decimal places", models.PriceScale)
		}
		product.Price = *update.Price
	}
	if update.CategoryID != nil {
		if err := s.requireCategory(ctx, *update.CategoryID); err != nil {
			return nil, err
		}
		product.CategoryID = *update.CategoryID
	}
	if update.Images != nil {
		product.Images = update.Images
	}
	if update.Stock != nil && *update.Stock < 0 {
		return nil, invalidInput("stock must not be negative")
	}

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, mapProductErr(err)
	}

	if update.Stock != nil {
		if err := s.ledger.SetStock(ctx, productID, *update.Stock); err != nil {
			return nil, err
		}
		product.Stock = *update.Stock
	} else {
		s.invalidate(ctx, productID)
	}

	return product, nil
}

// Approve makes a pending or rejected product visible to customers
func (s *CatalogService) Approve(ctx context.Context, productID string) (*models.Product, error) {
	return s.setStatus(ctx, productID, models.ProductStatusApproved)
}

// Reject hides a product from customers
func (s *CatalogService) Reject(ctx context.Context, productID string) (*models.Product, error) {
	return s.setStatus(ctx, productID, models.ProductStatusRejected)
}

func (s *CatalogService) setStatus(ctx context.Context, productID, status string) (*models.Product, error) {
	product, err := s.loadForWrite(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetProductStatus(ctx, productID, status); err != nil {
		return nil, mapProductErr(err)
	}
	s.invalidate(ctx, productID)

	product.Status = status
	s.logger.Info("Product status changed",
		zap.String("product_id", productID),
		zap.String("status", status))
	return product, nil
}

// DeleteProduct removes a product owned by the actor, or any product for admins
func (s *CatalogService) DeleteProduct(ctx context.Context, actor Actor, productID string) error {
	product, err := s.loadForWrite(ctx, productID)
	if err != nil {
		return err
	}
	if product.SellerID != actor.UserID && !actor.IsAdmin() {
		return ErrForbidden
	}

	if err := s.store.DeleteProduct(ctx, productID); err != nil {
		return mapProductErr(err)
	}
	s.invalidate(ctx, productID)
	return nil
}

// loadForWrite reads a product straight from the store, bypassing the cache
func (s *CatalogService) loadForWrite(ctx context.Context, productID string) (*models.Product, error) {
	if !models.IsValidID(productID) {
		return nil, invalidInput("invalid product id %q", productID)
	}
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

// requireCategory rejects ids that do not name an existing category
func (s *CatalogService) requireCategory(ctx context.Context, categoryID string) error {
	if !models.IsValidID(categoryID) {
		return invalidInput("invalid category id %q", categoryID)
	}
	if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalidInput("category %s does not exist", categoryID)
		}
		return err
	}
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context, productID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProducts(ctx, productID); err != nil {
		s.logger.Warn("Failed to invalidate cached product",
			zap.String("product_id", productID),
			zap.Error(err))
	}
}
