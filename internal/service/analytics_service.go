package service

import (
	"context"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
)

// AnalyticsService reports sales figures for admins
type AnalyticsService struct {
	store store.Store
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(st store.Store) *AnalyticsService {
	return &AnalyticsService{store: st}
}

// Summary returns approved product count, buyer count, order count and revenue
func (s *AnalyticsService) Summary(ctx context.Context) (*models.SalesSummary, error) {
	return s.store.SalesSummary(ctx)
}
