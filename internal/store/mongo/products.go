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

type productDoc struct {
	ID          bson.ObjectID   `bson:"_id"`
	Name        string          `bson:"name"`
	Description string          `bson:"description"`
	Price       bson.Decimal128 `bson:"price"`
	Stock       int             `bson:"stock"`
	Status      string          `bson:"status"`
	SellerID    string          `bson:"seller_id"`
	CategoryID  string          `bson:"category_id"`
	Images      []string        `bson:"images"`
	CreatedAt   time.Time       `bson:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at"`
}

func (d *productDoc) toModel() (*models.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return nil, err
	}
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return &models.Product{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		Price:       price,
		Stock:       d.Stock,
		Status:      d.Status,
		SellerID:    d.SellerID,
		CategoryID:  d.CategoryID,
		Images:      images,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	defer cursor.Close(ctx)

	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(docs))
	for i := range docs {
		p, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, nil
}

func (s *Store) findProduct(ctx context.Context, id string) (*models.Product, error) {
	oid, err := parseID("product", id)
	if err != nil {
		return nil, err
	}

	var doc productDoc
	err = s.products.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel()
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.findProduct(ctx, id)
}

// GetProductsByIDs retrieves the products that exist among ids
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	oids := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := bson.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []models.Product{}, nil
	}

	cursor, err := s.products.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	return decodeProducts(ctx, cursor)
}

// ListProducts retrieves products matching filter, newest first
func (s *Store) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.SellerID != "" {
		query["seller_id"] = filter.SellerID
	}
	if filter.CategoryID != "" {
		query["category_id"] = filter.CategoryID
	}
	if filter.InStockOnly {
		query["stock"] = bson.M{"$gt": 0}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.products.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return decodeProducts(ctx, cursor)
}

// CreateProduct inserts a new product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	oid := bson.NewObjectID()
	if product.ID != "" {
		parsed, err := bson.ObjectIDFromHex(product.ID)
		if err != nil {
			return fmt.Errorf("invalid product id %s: %w", product.ID, err)
		}
		oid = parsed
	}

	price, err := toDecimal128(product.Price)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	doc := productDoc{
		ID:          oid,
		Name:        product.Name,
		Description: product.Description,
		Price:       price,
		Stock:       product.Stock,
		Status:      product.Status,
		SellerID:    product.SellerID,
		CategoryID:  product.CategoryID,
		Images:      product.Images,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.products.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}

	product.ID = oid.Hex()
	product.CreatedAt = now
	product.UpdatedAt = now
	return nil
}

func (s *Store) updateProduct(ctx context.Context, id string, set bson.M) error {
	oid, err := parseID("product", id)
	if err != nil {
		return err
	}
	set["updated_at"] = time.Now().UTC()

	res, err := s.products.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// UpdateProduct updates the descriptive fields of a product
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	price, err := toDecimal128(product.Price)
	if err != nil {
		return err
	}
	return s.updateProduct(ctx, product.ID, bson.M{
		"name":        product.Name,
		"description": product.Description,
		"price":       price,
		"category_id": product.CategoryID,
		"images":      product.Images,
	})
}

// SetProductStatus updates product status
func (s *Store) SetProductStatus(ctx context.Context, id, status string) error {
	return s.updateProduct(ctx, id, bson.M{"status": status})
}

// SetProductStock overwrites product stock
func (s *Store) SetProductStock(ctx context.Context, id string, stock int) error {
	return s.updateProduct(ctx, id, bson.M{"stock": stock})
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	oid, err := parseID("product", id)
	if err != nil {
		return err
	}
	res, err := s.products.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// GetProductForUpdate reads the product inside the session transaction.
// Conflicting writers are detected by the server at DecrementStock.
func (t *mongoTx) GetProductForUpdate(ctx context.Context, id string) (*models.Product, error) {
	return t.store.findProduct(ctx, id)
}

// DecrementStock applies $inc only when stock >= quantity
func (t *mongoTx) DecrementStock(ctx context.Context, id string, quantity int) (int, error) {
	oid, err := parseID("product", id)
	if err != nil {
		return 0, err
	}

	filter := bson.M{"_id": oid, "stock": bson.M{"$gte": quantity}}
	update := bson.M{
		"$inc": bson.M{"stock": -quantity},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc productDoc
	err = t.store.products.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.Stock, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("failed to decrement stock: %w", err)
	}

	current, err := t.store.findProduct(ctx, id)
	if err != nil {
		return 0, err
	}
	return current.Stock, fmt.Errorf("product %s: %w", id, store.ErrInsufficientStock)
}
