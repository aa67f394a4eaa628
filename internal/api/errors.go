package api

import (
	"errors"
	"net/http"

	"checkout-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

// respondError maps a service error to a status code and message.
// Unexpected errors are logged and reported without detail.
func (h *Handler) respondError(c *gin.Context, err error) {
	var stockErr *service.StockError

	switch {
	case errors.As(err, &stockErr):
		fail(c, http.StatusBadRequest, stockErr.Error())
	case errors.Is(err, service.ErrInsufficientStock), errors.Is(err, service.ErrOutOfStock):
		fail(c, http.StatusBadRequest, "Insufficient stock")
	case errors.Is(err, service.ErrInvalidInput):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProductNotFound):
		fail(c, http.StatusNotFound, "Product not found")
	case errors.Is(err, service.ErrCartNotFound):
		fail(c, http.StatusNotFound, "Cart not found")
	case errors.Is(err, service.ErrItemNotFound):
		fail(c, http.StatusNotFound, "Product not found in cart")
	case errors.Is(err, service.ErrOrderNotFound):
		fail(c, http.StatusNotFound, "Order not found")
	case errors.Is(err, service.ErrCategoryNotFound):
		fail(c, http.StatusNotFound, "Category not found")
	case errors.Is(err, service.ErrCategoryExists):
		fail(c, http.StatusConflict, "Category already exists")
	case errors.Is(err, service.ErrCategoryInUse):
		fail(c, http.StatusConflict, "Category still has products")
	case errors.Is(err, service.ErrDuplicateRequest):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrForbidden):
		fail(c, http.StatusForbidden, "Forbidden - you do not have permission to modify this product")
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		fail(c, http.StatusInternalServerError, "Internal server error")
	}
}
