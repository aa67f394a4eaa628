package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/auth"
	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	carts          *service.CartService
	orders         *service.OrderService
	catalog        *service.CatalogService
	categories     *service.CategoryService
	analytics      *service.AnalyticsService
	verifier       *auth.Verifier
	checks         []dependencyCheck
	allowedOrigins []string
	logger         *zap.Logger
}

type dependencyCheck struct {
	name   string
	pinger Pinger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	carts *service.CartService,
	orders *service.OrderService,
	catalog *service.CatalogService,
	categories *service.CategoryService,
	analytics *service.AnalyticsService,
	verifier *auth.Verifier,
	store Pinger,
	allowedOrigins []string,
) *Handler {
	return &Handler{
		carts:          carts,
		orders:         orders,
		catalog:        catalog,
		categories:     categories,
		analytics:      analytics,
		verifier:       verifier,
		checks:         []dependencyCheck{{name: "store", pinger: store}},
		allowedOrigins: allowedOrigins,
		logger:         util.Named("http"),
	}
}

// WithReadinessCheck adds a dependency that must answer before /ready reports ready
func (h *Handler) WithReadinessCheck(name string, p Pinger) *Handler {
	h.checks = append(h.checks, dependencyCheck{name: name, pinger: p})
	return h
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(h.requestLogger())
	router.Use(prometheusMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     h.allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", h.verifier.Middleware())

	customer := v1.Group("", auth.RequireRole(models.RoleCustomer))
	{
		customer.POST("/cart/add", h.addToCart)
		customer.PUT("/cart/item", h.updateCartItem)
		customer.DELETE("/cart/item", h.removeCartItem)
		customer.DELETE("/cart", h.clearCart)
		customer.GET("/cart/products", h.getCartProducts)

		customer.POST("/orders", h.createOrder)
		customer.POST("/orders/checkout", h.checkout)
		customer.GET("/orders", h.listOrders)
		customer.GET("/orders/:id", h.getOrder)

		customer.GET("/category/:category", h.listCategory)
	}

	v1.GET("/category", h.listCategories)
	v1.POST("/category/add", auth.RequireRole(models.RoleAdmin), h.addCategory)
	v1.DELETE("/category/:categoryId", auth.RequireRole(models.RoleAdmin), h.deleteCategory)

	v1.GET("/products", h.listProducts)
	v1.GET("/products/:id", h.getProduct)
	v1.POST("/products", auth.RequireRole(models.RoleSeller, models.RoleAdmin), h.createProduct)
	v1.PATCH("/products/:id", auth.RequireRole(models.RoleSeller), h.updateProduct)
	v1.DELETE("/products/:id", auth.RequireRole(models.RoleSeller, models.RoleAdmin), h.deleteProduct)

	v1.GET("/seller/products", auth.RequireRole(models.RoleSeller), h.listSellerProducts)

	admin := v1.Group("/admin", auth.RequireRole(models.RoleAdmin))
	{
		admin.GET("/products", h.listPendingProducts)
		admin.PATCH("/products/:id/approve", h.approveProduct)
		admin.PATCH("/products/:id/reject", h.rejectProduct)
		admin.GET("/analytics", h.getAnalytics)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every registered dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for _, check := range h.checks {
		if err := check.pinger.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed",
				zap.String("dependency", check.name),
				zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "unavailable",
				"dependency": check.name,
				"time":       time.Now().Unix(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{UserID: auth.UserID(c), Role: auth.Role(c)}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// requestLogger writes one structured line per request
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if userID := auth.UserID(c); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			h.logger.Error("Request failed", fields...)
		case status >= http.StatusBadRequest:
			h.logger.Warn("Request rejected", fields...)
		default:
			h.logger.Debug("Request served", fields...)
		}
	}
}
