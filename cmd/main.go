package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"marketplace-service/internal/api"
	"marketplace-service/internal/cache"
	"marketplace-service/internal/config"
	"marketplace-service/internal/consumer"
	"marketplace-service/internal/events"
	"marketplace-service/internal/metrics"
	"marketplace-service/internal/pricing"
	"marketplace-service/internal/repository"
	"marketplace-service/internal/service"
	"marketplace-service/internal/session"
	"marketplace-service/internal/sharding"
	"marketplace-service/migrations"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "marketplace-service").Logger()

func connectDBEnv(host, port, user, pass, dbname string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)

	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("mysql", dsn)
		if err == nil {
			err = db.Ping()
			if err == nil {
				logger.Info().Str("db", dbname).Msg("Connected to DB")
				return db, nil
			}
		}
		logger.Warn().Err(err).Int("attempt", i+1).Str("db", dbname).Str("addr", host+":"+port).Msg("Failed to connect to DB, retrying")
		time.Sleep(3 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to DB %s at %s:%s after retries: %v", dbname, host, port, err)
}

// openStores returns the catalog and order store for the configured backend.
func openStores(cfg config.Config) (repository.CatalogRepository, repository.OrderStore, func(), error) {
	if cfg.Storage == "memory" {
		logger.Warn().Msg("Using in-memory storage, data is lost on restart")
		repo := repository.NewMemoryRepository()
		return repo, repo, func() {}, nil
	}

	db, err := connectDBEnv(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := migrations.AutoMigrate(3, db); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	repo := repository.NewRepository(db)
	return repo, repo, func() { db.Close() }, nil
}

func main() {
	cfg := config.Load()

	catalog, store, closeDB, err := openStores(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer closeDB()

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	productCache := cache.NewRedisProductCache(rdb, cfg.ProductCacheTTL)
	cachedCatalog := repository.NewCachedCatalog(catalog, productCache)
	carts := session.NewRedisCartStore(rdb, cfg.CartTTL)
	guard := session.NewRedisCheckoutGuard(rdb, cfg.CartTTL)

	kafkaWriter := config.NewKafkaWriter(cfg.KafkaBrokers, cfg.OrderTopic, sharding.NewSellerBalancer())
	defer kafkaWriter.Close()
	publisher := events.NewKafkaPublisher(kafkaWriter)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	orderService := service.NewOrderService(cachedCatalog, store, carts, guard, pricing.NewClient(cfg.PricingServiceURL), publisher, m,
		service.Options{PaymentWindow: cfg.PaymentWindow, LowStockThreshold: cfg.LowStockThreshold})
	cartService := service.NewCartService(cachedCatalog, carts)
	handler := api.NewHandler(cartService, orderService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kafkaReader := config.NewKafkaReader(cfg.KafkaBrokers, cfg.OrderTopic, cfg.ConsumerGroup)
	defer kafkaReader.Close()
	go func() {
		if err := consumer.NewConsumer(kafkaReader, productCache).Run(ctx); err != nil {
			logger.Error().Err(err).Msg("Consumer stopped")
		}
	}()

	e := echo.New()
	e.HideBanner = true

	limiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimit),
				Burst:     cfg.RateBurst,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(context echo.Context) (string, error) {
			return context.RealIP(), nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
	}

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(m.Middleware())
	e.Use(middleware.RateLimiterWithConfig(limiterConfig))

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	handler.Register(e, api.JWT(cfg.JWTSecret))

	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}
}
