package service

import (
	"context"
	"errors"
	"strings"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// CategoryService manages the catalog's categories
type CategoryService struct {
	store  store.Store
	logger *zap.Logger
}

// NewCategoryService creates a new category service
func NewCategoryService(st store.Store) *CategoryService {
	return &CategoryService{store: st, logger: util.Named("categories")}
}

// Create adds a category. Names are unique ignoring case.
func (s *CategoryService) Create(ctx context.Context, name, description string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidInput("category name is required")
	}

	category := &models.Category{Name: name, Description: strings.TrimSpace(description)}
	if err := s.store.CreateCategory(ctx, category); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrCategoryExists
		}
		return nil, err
	}

	s.logger.Info("Category created",
		zap.String("category_id", category.ID),
		zap.String("name", category.Name))
	return category, nil
}

// List returns every category ordered by name
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	return s.store.ListCategories(ctx)
}

// Delete removes a category that no product references
func (s *CategoryService) Delete(ctx context.Context, categoryID string) error {
	if !models.IsValidID(categoryID) {
		return invalidInput("invalid category id %q", categoryID)
	}

	if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}

	products, err := s.store.ListProducts(ctx, store.ProductFilter{CategoryID: categoryID})
	if err != nil {
		return err
	}
	if len(products) > 0 {
		return ErrCategoryInUse
	}

	if err := s.store.DeleteCategory(ctx, categoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}

	s.logger.Info("Category deleted", zap.String("category_id", categoryID))
	return nil
}
