package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Product represents a sellable item in the catalog
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Status      string          `json:"status"`
	SellerID    string          `json:"sellerId"`
	CategoryID  string          `json:"categoryId"`
	Images      []string        `json:"images"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Visible reports whether customers may see the product.
func (p *Product) Visible() bool {
	return p.Status == ProductStatusApproved && p.Stock > 0
}

// PrimaryImage returns the first image reference, or "" when there is none.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Product statuses
const (
	ProductStatusPending  = "pending"
	ProductStatusApproved = "approved"
	ProductStatusRejected = "rejected"
)

// User roles carried in the session token
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
	RoleAdmin    = "admin"
)

// CartItem is a line in a cart. Price is the unit price captured when the
// product was first added and is never re-read from the product.
type CartItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Amount returns price * quantity.
func (i CartItem) Amount() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart holds one user's pending selections
type Cart struct {
	UserID    string          `json:"userId"`
	Items     []CartItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewCart returns an empty cart owned by userID.
func NewCart(userID string) *Cart {
	return &Cart{
		UserID: userID,
		Items:  []CartItem{},
		Total:  decimal.Zero,
	}
}

// Recalculate sets Total to the sum of the line amounts.
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Amount())
	}
	c.Total = total
}

// FindItem returns the index of the line for productID, or -1.
func (c *Cart) FindItem(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// RemoveAt drops the line at index i.
func (c *Cart) RemoveAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.Total = decimal.Zero
}

// OrderItem is an order line with the unit price at purchase time
type OrderItem struct {
	ProductID string          `json:"product"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Amount returns price * quantity.
func (i OrderItem) Amount() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is an immutable record of a completed purchase
type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user"`
	Items       []OrderItem     `json:"products"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ProductIDs returns the distinct products on the order, in line order.
func (o *Order) ProductIDs() []string {
	ids := make([]string, 0, len(o.Items))
	seen := make(map[string]bool, len(o.Items))
	for _, item := range o.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

// PriceScale is the number of decimal places a stored amount may carry.
const PriceScale = 2

// FitsPriceScale reports whether d can be stored without rounding.
func FitsPriceScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(PriceScale))
}

// Category groups products in the catalog
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SalesSummary aggregates committed orders for the admin dashboard
type SalesSummary struct {
	Customers    int             `json:"customers"`
	Products     int             `json:"products"`
	TotalSales   int             `json:"totalSales"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
}

// SumItems returns the sum of the line amounts.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount())
	}
	return total
}

// NewID returns a fresh 24-character hex identifier.
func NewID() string {
	return bson.NewObjectID().Hex()
}

// IsValidID reports whether id is a 24-character hex identifier.
func IsValidID(id string) bool {
	_, err := bson.ObjectIDFromHex(id)
	return err == nil
}
