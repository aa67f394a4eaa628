package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type orderItemDoc struct {
	ProductID string          `bson:"product_id"`
	Quantity  int             `bson:"quantity"`
	Price     bson.Decimal128 `bson:"price"`
}

type orderDoc struct {
	ID          bson.ObjectID   `bson:"_id"`
	UserID      string          `bson:"user_id"`
	Items       []orderItemDoc  `bson:"items"`
	TotalAmount bson.Decimal128 `bson:"total_amount"`
	CreatedAt   time.Time       `bson:"created_at"`
}

func (d *orderDoc) toModel() (*models.Order, error) {
	total, err := fromDecimal128(d.TotalAmount)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:          d.ID.Hex(),
		UserID:      d.UserID,
		Items:       make([]models.OrderItem, 0, len(d.Items)),
		TotalAmount: total,
		CreatedAt:   d.CreatedAt,
	}
	for _, it := range d.Items {
		price, err := fromDecimal128(it.Price)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     price,
		})
	}
	return order, nil
}

// InsertOrder inserts the order document inside the session transaction
func (t *mongoTx) InsertOrder(ctx context.Context, order *models.Order) error {
	total, err := toDecimal128(order.TotalAmount)
	if err != nil {
		return err
	}

	doc := orderDoc{
		ID:          bson.NewObjectID(),
		UserID:      order.UserID,
		Items:       make([]orderItemDoc, 0, len(order.Items)),
		TotalAmount: total,
		CreatedAt:   time.Now().UTC(),
	}
	for _, it := range order.Items {
		price, err := toDecimal128(it.Price)
		if err != nil {
			return err
		}
		doc.Items = append(doc.Items, orderItemDoc{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     price,
		})
	}

	if _, err := t.store.orders.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	order.ID = doc.ID.Hex()
	order.CreatedAt = doc.CreatedAt
	return nil
}

// GetOrder retrieves an order by ID
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	oid, err := parseID("order", id)
	if err != nil {
		return nil, err
	}

	var doc orderDoc
	err = s.orders.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel()
}

// ListOrdersByUser retrieves a user's orders, newest first
func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.orders.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []orderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(docs))
	for i := range docs {
		o, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

type salesDoc struct {
	TotalSales   int             `bson:"total_sales"`
	TotalRevenue bson.Decimal128 `bson:"total_revenue"`
	Customers    int             `bson:"customers"`
}

// SalesSummary counts approved products and groups every order into one row
func (s *Store) SalesSummary(ctx context.Context) (*models.SalesSummary, error) {
	products, err := s.products.CountDocuments(ctx, bson.M{"status": models.ProductStatusApproved})
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total_sales", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "total_revenue", Value: bson.D{{Key: "$sum", Value: "$total_amount"}}},
			{Key: "customers", Value: bson.D{{Key: "$addToSet", Value: "$user_id"}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "total_sales", Value: 1},
			{Key: "total_revenue", Value: 1},
			{Key: "customers", Value: bson.D{{Key: "$size", Value: "$customers"}}},
		}}},
	}

	cursor, err := s.orders.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}
	defer cursor.Close(ctx)

	summary := &models.SalesSummary{Products: int(products), TotalRevenue: decimal.Zero}

	var rows []salesDoc
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return summary, nil
	}

	revenue, err := fromDecimal128(rows[0].TotalRevenue)
	if err != nil {
		return nil, err
	}
	summary.TotalSales = rows[0].TotalSales
	summary.TotalRevenue = revenue
	summary.Customers = rows[0].Customers
	return summary, nil
}
