package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const productSelect = `
	SELECT id, name, description, price, stock, status, seller_id, category_id, images, created_at, updated_at
	FROM products`

type productRow struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	Stock       int             `db:"stock"`
	Status      string          `db:"status"`
	SellerID    string          `db:"seller_id"`
	CategoryID  string          `db:"category_id"`
	Images      pq.StringArray  `db:"images"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (r *productRow) toModel() *models.Product {
	return &models.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		Status:      r.Status,
		SellerID:    r.SellerID,
		CategoryID:  r.CategoryID,
		Images:      []string(r.Images),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func getProduct(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*models.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, q, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %v: %w", args[0], store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func toProducts(rows []productRow) []models.Product {
	products := make([]models.Product, 0, len(rows))
	for i := range rows {
		products = append(products, *rows[i].toModel())
	}
	return products
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return getProduct(ctx, s.db, productSelect+" WHERE id = $1", id)
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In(productSelect+" WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return toProducts(rows), nil
}

// ListProducts retrieves products matching filter, newest first
func (s *Store) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.SellerID != "" {
		add("seller_id = $%d", filter.SellerID)
	}
	if filter.CategoryID != "" {
		add("category_id = $%d", filter.CategoryID)
	}
	if filter.InStockOnly {
		conds = append(conds, "stock > 0")
	}

	query := productSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return toProducts(rows), nil
}

// CreateProduct inserts a new product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = models.NewID()
	}

	query := `
		INSERT INTO products (id, name, description, price, stock, status, seller_id, category_id, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		product.ID, product.Name, product.Description, product.Price, product.Stock,
		product.Status, product.SellerID, product.CategoryID, pq.StringArray(product.Images),
	).Scan(&product.CreatedAt, &product.UpdatedAt)
}

// UpdateProduct updates the descriptive fields of a product
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, price = $3, category_id = $4, images = $5, updated_at = NOW()
		WHERE id = $6`,
		product.Name, product.Description, product.Price, product.CategoryID,
		pq.StringArray(product.Images), product.ID)
	if err != nil {
		return err
	}
	return expectOne(res, "product", product.ID)
}

// SetProductStatus updates product status
func (s *Store) SetProductStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return err
	}
	return expectOne(res, "product", id)
}

// SetProductStock overwrites product stock
func (s *Store) SetProductStock(ctx context.Context, id string, stock int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2", stock, id)
	if err != nil {
		return err
	}
	return expectOne(res, "product", id)
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectOne(res, "product", id)
}

// GetProductForUpdate locks the product row until the transaction ends
func (t *pgTx) GetProductForUpdate(ctx context.Context, id string) (*models.Product, error) {
	return getProduct(ctx, t.tx, productSelect+" WHERE id = $1 FOR UPDATE", id)
}

// DecrementStock subtracts quantity only while enough stock remains
func (t *pgTx) DecrementStock(ctx context.Context, id string, quantity int) (int, error) {
	var stock int
	err := t.tx.GetContext(ctx, &stock, `
		UPDATE products SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1
		RETURNING stock`, quantity, id)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to decrement stock: %w", err)
	}

	current, err := getProduct(ctx, t.tx, productSelect+" WHERE id = $1", id)
	if err != nil {
		return 0, err
	}
	return current.Stock, fmt.Errorf("product %s: %w", id, store.ErrInsufficientStock)
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}
