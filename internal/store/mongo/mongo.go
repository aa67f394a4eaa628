// Package mongo implements store.Store on MongoDB. The unit of work is a
// multi-document transaction, which requires a replica set.
package mongo

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"
	"go.uber.org/zap"
)

const (
	productsCollection   = "products"
	categoriesCollection = "categories"
	cartsCollection      = "carts"
	ordersCollection     = "orders"
)

// Store is the MongoDB backend
type Store struct {
	client     *mongo.Client
	products   *mongo.Collection
	categories *mongo.Collection
	carts      *mongo.Collection
	orders     *mongo.Collection
	logger     *zap.Logger
}

var _ store.Store = (*Store)(nil)

// NewStore connects to MongoDB, verifies the connection and ensures indexes
func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:     client,
		products:   db.Collection(productsCollection),
		categories: db.Collection(categoriesCollection),
		carts:      db.Collection(cartsCollection),
		orders:     db.Collection(ordersCollection),
		logger:     util.Named("mongo"),
	}

	if err := s.ensureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// WithTx runs fn inside a session transaction. The driver retries fn when
// the server reports a transient write conflict, so fn must be safe to
// re-run from the start.
func (s *Store) WithTx(ctx context.Context, fn store.TxFunc) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx, &mongoTx{store: s})
	}, txnOpts)
	return err
}

type mongoTx struct {
	store *Store
}

func parseID(kind, id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return oid, nil
}

func toDecimal128(d decimal.Decimal) (bson.Decimal128, error) {
	v, err := bson.ParseDecimal128(d.String())
	if err != nil {
		return bson.Decimal128{}, fmt.Errorf("invalid decimal %s: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(v bson.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal128 %s: %w", v.String(), err)
	}
	return d, nil
}
