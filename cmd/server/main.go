package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/config"
	"checkout-service/internal/api"
	"checkout-service/internal/auth"
	"checkout-service/internal/broker"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/service"
	"checkout-service/internal/store"
	"checkout-service/internal/store/mongo"
	"checkout-service/internal/store/postgres"
	"checkout-service/internal/util"
	"checkout-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		return mongo.NewStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	case config.StoreDriverPostgres:
		return postgres.NewStore(ctx, cfg.Database.URL)
	case config.StoreDriverMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting checkout service", zap.String("store", cfg.Store.Driver))

	// Prices go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint, cfg.Observ.TraceSamplePercent)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	startCtx, startCancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := openStore(startCtx, cfg)
	startCancel()
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Store connected", zap.String("driver", cfg.Store.Driver))

	var (
		productCache service.ProductCache
		idempotency  service.IdempotencyStore
		redisClient  *redisclient.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		productCache = redisClient
		idempotency = redisClient
		logger.Info("Redis connected")
	}

	var (
		eventPublisher service.EventPublisher
		cacheWorker    *worker.CacheWorker
	)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		eventPublisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized")

		if redisClient != nil {
			consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
			cacheWorker = worker.NewCacheWorker(consumer, redisClient)
			go func() {
				if err := cacheWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Cache worker error", zap.Error(err))
				}
			}()
		}
	}

	ledger := service.NewInventoryLedger(db, productCache, eventPublisher)
	carts := service.NewCartService(db)
	orders := service.NewOrderService(db, ledger, carts, eventPublisher, idempotency, cfg.Business.IdempotencyTTL)
	catalog := service.NewCatalogService(db, ledger, productCache, cfg.Business.ProductCacheTTL)
	categories := service.NewCategoryService(db)
	analytics := service.NewAnalyticsService(db)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.CookieName)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(carts, orders, catalog, categories, analytics, verifier, db, cfg.HTTP.AllowedOrigins)
	if redisClient != nil {
		handler.WithReadinessCheck("redis", redisClient)
	}
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if cacheWorker != nil {
		if err := cacheWorker.Stop(); err != nil {
			logger.Warn("Error stopping cache worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
