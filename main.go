package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/yashrajoria/storefront-service/common/errors"
	"github.com/yashrajoria/storefront-service/common/logger"
	commonmw "github.com/yashrajoria/storefront-service/common/middleware"
	"github.com/yashrajoria/storefront-service/controllers"
	"github.com/yashrajoria/storefront-service/database"
	"github.com/yashrajoria/storefront-service/kafka"
	"github.com/yashrajoria/storefront-service/metrics"
	"github.com/yashrajoria/storefront-service/middleware"
	aws_pkg "github.com/yashrajoria/storefront-service/pkg/aws"
	"github.com/yashrajoria/storefront-service/repository"
	"github.com/yashrajoria/storefront-service/routes"
	"github.com/yashrajoria/storefront-service/services"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	limiterIdleTTL  = 10 * time.Minute
)

func main() {
	logger.Initialize(os.Getenv("APP_ENV"))
	defer func() { _ = logger.Log.Sync() }()
	log := logger.Log

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// --- 1. Infrastructure ---

	db, err := database.ConnectPostgres(cfg.Postgres, log)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("Failed to close Postgres", zap.Error(err))
		}
	}()

	redisClient, err := database.NewRedisClient(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	var kafkaPub services.KafkaPublisher
	if brokers := kafka.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		producer, err := kafka.NewProducer(brokers, cfg.OrderEventsTopic)
		if err != nil {
			log.Fatal("Failed to create Kafka producer", zap.Error(err))
		}
		defer func() {
			if err := producer.Close(); err != nil {
				log.Warn("Failed to close Kafka producer", zap.Error(err))
			}
		}()
		kafkaPub = producer
		log.Info("Order events go to Kafka", zap.String("topic", producer.Topic()))
	} else {
		log.Warn("KAFKA_BROKERS not set, order events will not reach Kafka")
	}

	var snsPub aws_pkg.SNSPublisher
	var cwMetrics *aws_pkg.MetricsClient
	if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err != nil {
		log.Warn("AWS config unavailable, SNS and CloudWatch disabled", zap.Error(err))
	} else {
		if cfg.OrderSNSTopicArn != "" {
			snsPub = aws_pkg.NewSNSClient(awsCfg)
		}
		cwMetrics = aws_pkg.NewMetricsClient(awsCfg)
	}

	storeMetrics := metrics.NewStoreMetrics(cfg.ServiceName)

	// --- 2. Dependency injection ---

	productRepo := repository.NewGormProductRepository(db)
	userRepo := repository.NewGormUserRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)
	sessions := repository.NewRedisSessionStore(redisClient, cfg.CartTTL)
	tx := repository.NewGormTransactor(db)

	resolver := services.NewCartResolver(
		services.NewSessionCartStore(sessions, orderRepo),
		services.NewDurableCartStore(userRepo, orderRepo),
	)
	ledger := services.NewStockLedger(productRepo, log)
	binder := services.NewContactBinder(userRepo, log)
	publisher := services.NewOrderEventPublisher(kafkaPub, snsPub, cfg.OrderSNSTopicArn, storeMetrics, log)

	cartService := services.NewCartService(tx, resolver, productRepo, storeMetrics, log)
	checkoutService := services.NewCheckoutService(tx, resolver, ledger, binder, userRepo, publisher, storeMetrics, log)
	catalogService := services.NewCatalogService(productRepo)
	profileService := services.NewProfileService(userRepo, log)
	orderService := services.NewOrderService(userRepo, orderRepo)

	cartController := controllers.NewCartController(cartService, checkoutService)
	catalogController := controllers.NewCatalogController(catalogService)
	accountController := controllers.NewAccountController(profileService, orderService)

	// --- 3. HTTP server & middleware ---

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(commonmw.RequestLogger(log))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.MetricsMiddleware(cwMetrics, cfg.ServiceName))
	r.Use(apperrors.ErrorMiddleware())
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/metrics", gin.WrapH(storeMetrics.Handler()))

	shop := r.Group("")
	shop.Use(middleware.Identity([]byte(cfg.JWTSecret), cfg.TrustGatewayHeader))
	shop.Use(middleware.CartSession(cfg.CartTTL, cfg.SecureCookies))

	limiter := commonmw.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, limiterIdleTTL)
	defer limiter.Close()

	routes.RegisterStoreRoutes(shop, catalogController, cartController, accountController,
		commonmw.RateLimitMiddleware(limiter))

	// --- 4. Graceful shutdown ---

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Storefront service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exiting")
}
