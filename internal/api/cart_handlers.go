package api

import (
	"errors"
	"net/http"

	"checkout-service/internal/auth"
	"checkout-service/internal/models"
	"checkout-service/internal/service"

	"github.com/gin-gonic/gin"
)

type addToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type updateCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type removeCartItemRequest struct {
	ProductID string `json:"productId"`
}

// addToCart handles POST /cart/add
func (h *Handler) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !models.IsValidID(req.ProductID) {
		fail(c, http.StatusBadRequest, "A valid productId is required")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	cart, err := h.carts.AddItem(c.Request.Context(), auth.UserID(c), req.ProductID, quantity)
	if err != nil {
		// The product is part of the request body here, so a missing one is a bad request.
		if errors.Is(err, service.ErrProductNotFound) {
			fail(c, http.StatusBadRequest, "Product not found")
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "cart": cart})
}

// updateCartItem handles PUT /cart/item
func (h *Handler) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Quantity must be a non-negative number")
		return
	}
	if req.ProductID == "" || req.Quantity == nil {
		fail(c, http.StatusBadRequest, "Product id and quantity are required")
		return
	}
	if *req.Quantity < 0 {
		fail(c, http.StatusBadRequest, "Quantity must be a non-negative number")
		return
	}

	cart, err := h.carts.SetItemQuantity(c.Request.Context(), auth.UserID(c), req.ProductID, *req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "cart": cart})
}

// removeCartItem handles DELETE /cart/item
func (h *Handler) removeCartItem(c *gin.Context) {
	var req removeCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" {
		fail(c, http.StatusBadRequest, "Product ID is required")
		return
	}

	cart, err := h.carts.RemoveItem(c.Request.Context(), auth.UserID(c), req.ProductID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Product removed from cart",
		"cart":    cart,
	})
}

// clearCart handles DELETE /cart
func (h *Handler) clearCart(c *gin.Context) {
	cart, err := h.carts.Clear(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "All items removed from cart",
		"cart":    cart.Items,
	})
}

// getCartProducts handles GET /cart/products
func (h *Handler) getCartProducts(c *gin.Context) {
	lines, err := h.carts.ListItems(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "cart": lines})
}
