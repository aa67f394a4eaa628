package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type indexConfig struct {
	collection string
	model      mongo.IndexModel
}

var requiredIndexes = []indexConfig{
	// Customer listing: approved products with stock.
	{
		collection: productsCollection,
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "stock", Value: 1}},
			Options: options.Index().SetName("idx_status_stock"),
		},
	},
	{
		collection: productsCollection,
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "seller_id", Value: 1}},
			Options: options.Index().SetName("idx_seller"),
		},
	},
	{
		collection: productsCollection,
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "category_id", Value: 1}},
			Options: options.Index().SetName("idx_category"),
		},
	},
	{
		collection: categoriesCollection,
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "name_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_category_name_unique"),
		},
	},
	// One cart per user.
	{
		collection: cartsCollection,
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_cart_user_unique"),
		},
	},
	{
		collection: ordersCollection,
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_order_user_created"),
		},
	},
}

func (s *Store) ensureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, idx := range requiredIndexes {
		name, err := db.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model)
		if err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.collection, err)
		}
		s.logger.Debug("Index ensured", zap.String("collection", idx.collection), zap.String("index", name))
	}
	return nil
}
