package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type categoryDoc struct {
	ID          bson.ObjectID `bson:"_id"`
	Name        string        `bson:"name"`
	NameKey     string        `bson:"name_key"`
	Description string        `bson:"description"`
	CreatedAt   time.Time     `bson:"created_at"`
}

func (d *categoryDoc) toModel() *models.Category {
	return &models.Category{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}
}

// CreateCategory inserts a category; names are unique ignoring case
func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	doc := categoryDoc{
		ID:          bson.NewObjectID(),
		Name:        category.Name,
		NameKey:     strings.ToLower(category.Name),
		Description: category.Description,
		CreatedAt:   time.Now().UTC(),
	}

	if _, err := s.categories.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("category %q: %w", category.Name, store.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert category: %w", err)
	}

	category.ID = doc.ID.Hex()
	category.CreatedAt = doc.CreatedAt
	return nil
}

// GetCategory retrieves a category by ID
func (s *Store) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	oid, err := parseID("category", id)
	if err != nil {
		return nil, err
	}

	var doc categoryDoc
	err = s.categories.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("category %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// ListCategories returns every category ordered by name
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.categories.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []categoryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	categories := make([]models.Category, 0, len(docs))
	for i := range docs {
		categories = append(categories, *docs[i].toModel())
	}
	return categories, nil
}

// DeleteCategory removes a category
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	oid, err := parseID("category", id)
	if err != nil {
		return err
	}

	res, err := s.categories.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("category %s: %w", id, store.ErrNotFound)
	}
	return nil
}
