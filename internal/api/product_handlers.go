package api

import (
	"net/http"

	"checkout-service/internal/auth"
	"checkout-service/internal/service"

	"github.com/gin-gonic/gin"
)

// listProducts handles GET /products, optionally filtered by ?category=
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListVisible(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": products})
}

// listCategory handles GET /category/:category
func (h *Handler) listCategory(c *gin.Context) {
	products, err := h.catalog.ListVisible(c.Request.Context(), c.Param("category"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": products})
}

// getProduct handles GET /products/:id
func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": product})
}

// createProduct handles POST /products
func (h *Handler) createProduct(c *gin.Context) {
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Please provide name, description, price, stock and category")
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": product})
}

// updateProduct handles PATCH /products/:id
func (h *Handler) updateProduct(c *gin.Context) {
	var req service.ProductUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	product, err := h.catalog.UpdateProduct(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": product})
}

// deleteProduct handles DELETE /products/:id
func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.catalog.DeleteProduct(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product deleted successfully"})
}

// listSellerProducts handles GET /seller/products
func (h *Handler) listSellerProducts(c *gin.Context) {
	products, err := h.catalog.ListBySeller(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": products})
}

// listPendingProducts handles GET /admin/products
func (h *Handler) listPendingProducts(c *gin.Context) {
	products, err := h.catalog.ListPending(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": products})
}

// approveProduct handles PATCH /admin/products/:id/approve
func (h *Handler) approveProduct(c *gin.Context) {
	product, err := h.catalog.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Product status updated to APPROVED",
		"data":    product,
	})
}

// rejectProduct handles PATCH /admin/products/:id/reject
func (h *Handler) rejectProduct(c *gin.Context) {
	product, err := h.catalog.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Product status updated to REJECTED",
		"data":    product,
	})
}
