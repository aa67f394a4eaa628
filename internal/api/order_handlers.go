package api

import (
	"net/http"

	"checkout-service/internal/auth"
	"checkout-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	Products    []models.OrderItem `json:"products"`
	TotalAmount *decimal.Decimal   `json:"totalAmount"`
}

// createOrder handles POST /orders
func (h *Handler) createOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Products) == 0 {
		fail(c, http.StatusBadRequest, "Products array is empty")
		return
	}

	order, err := h.orders.CreateOrder(
		c.Request.Context(),
		auth.UserID(c),
		req.Products,
		req.TotalAmount,
		c.GetHeader("Idempotency-Key"),
	)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Order created successfully",
		"order":   order,
	})
}

// checkout handles POST /orders/checkout
func (h *Handler) checkout(c *gin.Context) {
	order, err := h.orders.Checkout(c.Request.Context(), auth.UserID(c), c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Order created successfully",
		"order":   order,
	})
}

// listOrders handles GET /orders
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

// getOrder handles GET /orders/:id
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}
