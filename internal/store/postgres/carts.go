package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"

	"github.com/shopspring/decimal"
)

type cartItemRow struct {
	ProductID string          `db:"product_id"`
	Quantity  int             `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
}

// GetCart retrieves a user's cart with its items
func (s *Store) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	var head struct {
		UserID    string          `db:"user_id"`
		Total     decimal.Decimal `db:"total"`
		UpdatedAt time.Time       `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &head,
		"SELECT user_id, total, updated_at FROM carts WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cart for user %s: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var rows []cartItemRow
	err = s.db.SelectContext(ctx, &rows,
		"SELECT product_id, quantity, price FROM cart_items WHERE user_id = $1 ORDER BY position", userID)
	if err != nil {
		return nil, err
	}

	cart := &models.Cart{
		UserID:    head.UserID,
		Items:     make([]models.CartItem, 0, len(rows)),
		Total:     head.Total,
		UpdatedAt: head.UpdatedAt,
	}
	for _, r := range rows {
		cart.Items = append(cart.Items, models.CartItem{
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
			Price:     r.Price,
		})
	}
	return cart, nil
}

// SaveCart replaces the stored cart and its items in one transaction
func (s *Store) SaveCart(ctx context.Context, cart *models.Cart) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.GetContext(ctx, &cart.UpdatedAt, `
		INSERT INTO carts (user_id, total, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET total = EXCLUDED.total, updated_at = NOW()
		RETURNING updated_at`, cart.UserID, cart.Total)
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", cart.UserID); err != nil {
		return fmt.Errorf("failed to reset cart items: %w", err)
	}

	for i, item := range cart.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (user_id, position, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)`,
			cart.UserID, i, item.ProductID, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
	}

	return tx.Commit()
}
