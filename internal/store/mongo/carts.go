package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type cartItemDoc struct {
	ProductID string          `bson:"product_id"`
	Quantity  int             `bson:"quantity"`
	Price     bson.Decimal128 `bson:"price"`
}

type cartDoc struct {
	UserID    string          `bson:"user_id"`
	Items     []cartItemDoc   `bson:"items"`
	Total     bson.Decimal128 `bson:"total"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

// GetCart retrieves a user's cart
func (s *Store) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	var doc cartDoc
	err := s.carts.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("cart for user %s: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	total, err := fromDecimal128(doc.Total)
	if err != nil {
		return nil, err
	}

	cart := &models.Cart{
		UserID:    doc.UserID,
		Items:     make([]models.CartItem, 0, len(doc.Items)),
		Total:     total,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, it := range doc.Items {
		price, err := fromDecimal128(it.Price)
		if err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, models.CartItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     price,
		})
	}
	return cart, nil
}

// SaveCart upserts the whole cart document
func (s *Store) SaveCart(ctx context.Context, cart *models.Cart) error {
	total, err := toDecimal128(cart.Total)
	if err != nil {
		return err
	}

	doc := cartDoc{
		UserID:    cart.UserID,
		Items:     make([]cartItemDoc, 0, len(cart.Items)),
		Total:     total,
		UpdatedAt: time.Now().UTC(),
	}
	for _, it := range cart.Items {
		price, err := toDecimal128(it.Price)
		if err != nil {
			return err
		}
		doc.Items = append(doc.Items, cartItemDoc{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     price,
		})
	}

	_, err = s.carts.ReplaceOne(ctx, bson.M{"user_id": cart.UserID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}

	cart.UpdatedAt = doc.UpdatedAt
	return nil
}
