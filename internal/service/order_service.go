package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService turns line items into committed orders
type OrderService struct {
	store          store.Store
	ledger         *InventoryLedger
	carts          *CartService
	eventPublisher EventPublisher
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewOrderService creates a new order service. eventPublisher and
// idempotency may be nil.
func NewOrderService(
	st store.Store,
	ledger *InventoryLedger,
	carts *CartService,
	eventPublisher EventPublisher,
	idempotency IdempotencyStore,
	idempotencyTTL time.Duration,
) *OrderService {
	return &OrderService{
		store:          st,
		ledger:         ledger,
		carts:          carts,
		eventPublisher: eventPublisher,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		logger:         util.Named("orders"),
	}
}

// CreateOrder atomically decrements stock for every line and inserts the
// order. Nothing is written unless every line can be fulfilled. A non-nil
// totalAmount must equal the sum of the lines.
func (s *OrderService) CreateOrder(
	ctx context.Context,
	userID string,
	lines []models.OrderItem,
	totalAmount *decimal.Decimal,
	idempotencyKey string,
) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder",
		attribute.String("user.id", userID),
		attribute.Int("order.lines", len(lines)),
	)
	defer span.End()

	existing, claimed, err := s.claim(ctx, userID, idempotencyKey)
	if err != nil || existing != nil {
		return existing, err
	}

	order, err := s.commit(ctx, userID, lines, totalAmount)
	if err != nil {
		span.RecordError(err)
		s.release(ctx, userID, idempotencyKey, claimed)
		return nil, err
	}

	s.afterCommit(ctx, order, idempotencyKey, claimed)
	return order, nil
}

// Checkout creates an order from the user's stored cart and clears the cart
// once the order is committed. A failed checkout leaves the cart untouched.
func (s *OrderService) Checkout(ctx context.Context, userID, idempotencyKey string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Checkout", attribute.String("user.id", userID))
	defer span.End()

	existing, claimed, err := s.claim(ctx, userID, idempotencyKey)
	if err != nil || existing != nil {
		return existing, err
	}

	order, err := s.commitCart(ctx, userID)
	if err != nil {
		span.RecordError(err)
		s.release(ctx, userID, idempotencyKey, claimed)
		return nil, err
	}
	s.afterCommit(ctx, order, idempotencyKey, claimed)

	// The order stands even if the cart cannot be cleared.
	if _, err := s.carts.Clear(ctx, userID); err != nil {
		s.logger.Error("Failed to clear cart after checkout",
			zap.String("user_id", userID),
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	return order, nil
}

func (s *OrderService) commitCart(ctx context.Context, userID string) (*models.Order, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, invalidInput("cart is empty")
	}

	lines := make([]models.OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return s.commit(ctx, userID, lines, nil)
}

func validateLines(lines []models.OrderItem, totalAmount *decimal.Decimal) (decimal.Decimal, error) {
	if len(lines) == 0 {
		return decimal.Zero, invalidInput("products array is empty")
	}

	for _, line := range lines {
		if !models.IsValidID(line.ProductID) {
			return decimal.Zero, invalidInput("invalid product id %q", line.ProductID)
		}
		if line.Quantity < 1 {
			return decimal.Zero, invalidInput("quantity for product %s must be at least 1", line.ProductID)
		}
		if line.Price.IsNegative() {
			return decimal.Zero, invalidInput("price for product %s must not be negative", line.ProductID)
		}
		if !models.FitsPriceScale(line.Price) {
			return decimal.Zero, invalidInput("price for product %s has more than %d decimal places", line.ProductID, models.PriceScale)
		}
	}

	total := models.SumItems(lines)
	if totalAmount != nil && !totalAmount.Equal(total) {
		return decimal.Zero, invalidInput("totalAmount %s does not match line total %s", totalAmount.String(), total.String())
	}
	return total, nil
}

func (s *OrderService) commit(
	ctx context.Context,
	userID string,
	lines []models.OrderItem,
	totalAmount *decimal.Decimal,
) (*models.Order, error) {
	total, err := validateLines(lines, totalAmount)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	var order *models.Order
	start := time.Now()
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, line := range lines {
			if _, err := s.ledger.ReserveAndDecrement(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		// The body may run more than once when the store retries a conflict.
		order = &models.Order{
			UserID:      userID,
			Items:       append([]models.OrderItem(nil), lines...),
			TotalAmount: total,
		}
		return tx.InsertOrder(ctx, order)
	})
	util.OrderCommitLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		s.logger.Warn("Order not committed",
			zap.String("user_id", userID),
			zap.Int("lines", len(lines)),
			zap.Error(err))
		if errors.Is(err, store.ErrInsufficientStock) && !errors.Is(err, ErrInsufficientStock) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientStock, err)
		}
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("total_amount", order.TotalAmount.String()))
	return order, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "store_error"
	}
}

// afterCommit runs the best-effort side effects of a committed order
func (s *OrderService) afterCommit(ctx context.Context, order *models.Order, idempotencyKey string, claimed bool) {
	// Cached copies still show the old stock, possibly as visible.
	s.ledger.EvictCached(ctx, order.ProductIDs()...)

	if s.eventPublisher != nil {
		if err := s.eventPublisher.PublishOrderCreated(ctx, models.NewOrderCreatedEvent(order)); err != nil {
			s.logger.Error("Failed to publish OrderCreated event",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
	}

	if claimed {
		if err := s.idempotency.CompleteOrderKey(ctx, order.UserID, idempotencyKey, order.ID, s.idempotencyTTL); err != nil {
			s.logger.Warn("Failed to record idempotency key",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
	}
}

// claim reserves the idempotency key for this request. It returns the order
// an earlier request with the same key produced, or ErrDuplicateRequest while
// that request is still running. When the key store is unreachable the
// request goes ahead unprotected.
func (s *OrderService) claim(ctx context.Context, userID, idempotencyKey string) (*models.Order, bool, error) {
	if idempotencyKey == "" || s.idempotency == nil {
		return nil, false, nil
	}

	orderID, reserved, err := s.idempotency.ReserveOrderKey(ctx, userID, idempotencyKey, s.idempotencyTTL)
	if err != nil {
		s.logger.Warn("Idempotency reservation failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, false, nil
	}
	if reserved {
		return nil, true, nil
	}
	if orderID == "" {
		return nil, false, ErrDuplicateRequest
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, false, fmt.Errorf("idempotency key %s refers to order %s: %w", idempotencyKey, orderID, err)
	}

	util.OrdersReplayedTotal.Inc()
	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", idempotencyKey),
		zap.String("order_id", order.ID))
	return order, false, nil
}

// release frees a claimed key after a failed attempt so the client can retry.
func (s *OrderService) release(ctx context.Context, userID, idempotencyKey string, claimed bool) {
	if !claimed {
		return
	}
	if err := s.idempotency.ReleaseOrderKey(ctx, userID, idempotencyKey); err != nil {
		s.logger.Warn("Failed to release idempotency key",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// GetOrder returns one of the user's orders
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	if !models.IsValidID(orderID) {
		return nil, invalidInput("invalid order id %q", orderID)
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns the user's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.store.ListOrdersByUser(ctx, userID)
}
