package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type orderRow struct {
	ID          string          `db:"id"`
	UserID      string          `db:"user_id"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	CreatedAt   time.Time       `db:"created_at"`
}

type orderItemRow struct {
	OrderID   string          `db:"order_id"`
	ProductID string          `db:"product_id"`
	Quantity  int             `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
}

// InsertOrder writes the order and its items inside the transaction
func (t *pgTx) InsertOrder(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = models.NewID()
	}

	err := t.tx.GetContext(ctx, &order.CreatedAt, `
		INSERT INTO orders (id, user_id, total_amount)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		order.ID, order.UserID, order.TotalAmount)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)`,
			order.ID, i, item.ProductID, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

// GetOrder retrieves an order by ID with its items
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row,
		"SELECT id, user_id, total_amount, created_at FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	orders, err := s.attachItems(ctx, []orderRow{row})
	if err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListOrdersByUser retrieves orders for a user, newest first
func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, total_amount, created_at FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, rows)
}

func (s *Store) attachItems(ctx context.Context, rows []orderRow) ([]models.Order, error) {
	orders := make([]models.Order, 0, len(rows))
	if len(rows) == 0 {
		return orders, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	query, args, err := sqlx.In(`
		SELECT order_id, product_id, quantity, unit_price FROM order_items
		WHERE order_id IN (?) ORDER BY order_id, position`, ids)
	if err != nil {
		return nil, err
	}

	var items []orderItemRow
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	byOrder := make(map[string][]models.OrderItem, len(rows))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], models.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.UnitPrice,
		})
	}

	for _, r := range rows {
		orders = append(orders, models.Order{
			ID:          r.ID,
			UserID:      r.UserID,
			Items:       byOrder[r.ID],
			TotalAmount: r.TotalAmount,
			CreatedAt:   r.CreatedAt,
		})
	}
	return orders, nil
}

// SalesSummary counts approved products and aggregates every order
func (s *Store) SalesSummary(ctx context.Context) (*models.SalesSummary, error) {
	var row struct {
		Products     int             `db:"products"`
		TotalSales   int             `db:"total_sales"`
		TotalRevenue decimal.Decimal `db:"total_revenue"`
		Customers    int             `db:"customers"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT
			(SELECT COUNT(*) FROM products WHERE status = $1) AS products,
			COUNT(*) AS total_sales,
			COALESCE(SUM(total_amount), 0) AS total_revenue,
			COUNT(DISTINCT user_id) AS customers
		FROM orders`, models.ProductStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}

	return &models.SalesSummary{
		Customers:    row.Customers,
		Products:     row.Products,
		TotalSales:   row.TotalSales,
		TotalRevenue: row.TotalRevenue,
	}, nil
}
