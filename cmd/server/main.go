package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/martxmartindia/checkout/internal/address"
	"github.com/martxmartindia/checkout/internal/cart"
	"github.com/martxmartindia/checkout/internal/checkout"
	"github.com/martxmartindia/checkout/internal/coupon"
	"github.com/martxmartindia/checkout/internal/gateway"
	"github.com/martxmartindia/checkout/internal/httpapi"
	"github.com/martxmartindia/checkout/internal/order"
)

type Config struct {
	HTTPPort        string
	JWTSecret       string
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	MongoURI      string
	MongoDatabase string
	RedisAddr     string

	Postgres order.Credentials

	KafkaBrokers []string
	OrdersTopic  string

	GatewayBaseURL string
	GatewayKeyID   string
	GatewaySecret  string
	Currency       string

	PincodeBaseURL string
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		AllowedOrigins:  strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "checkout"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),

		Postgres: order.Credentials{
			Host:              getEnv("POSTGRES_HOST", "localhost"),
			Port:              getEnvInt("POSTGRES_PORT", 5432),
			User:              getEnv("POSTGRES_USER", "postgres"),
			Password:          getEnv("POSTGRES_PASSWORD", "postgres"),
			DBName:            getEnv("POSTGRES_DB", "checkout"),
			MigrationsDirPath: getEnv("MIGRATIONS_DIR", "migrations"),
		},

		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		OrdersTopic:  getEnv("ORDERS_TOPIC", "orders.completed"),

		GatewayBaseURL: getEnv("GATEWAY_BASE_URL", "https://api.gateway.example"),
		GatewayKeyID:   getEnv("GATEWAY_KEY_ID", ""),
		GatewaySecret:  getEnv("GATEWAY_SECRET", ""),
		Currency:       getEnv("CURRENCY", "INR"),

		PincodeBaseURL: getEnv("PINCODE_BASE_URL", "https://pincode.example"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cart storage: MongoDB documents fronted by a Redis cache.
	mongoDB, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("mongodb: %v", err)
	}
	if err := cart.EnsureIndexes(ctx, mongoDB); err != nil {
		log.Fatalf("mongodb indexes: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	cartService := cart.NewService(cart.NewMongoRepository(mongoDB), cart.NewRedisCache(redisClient))

	// Relational storage: orders, addresses, coupons and checkout sessions
	// share one Postgres database.
	orderRepo, err := order.NewPostgresRepository(&cfg.Postgres)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer orderRepo.Close()

	if err := orderRepo.RunMigrations(&cfg.Postgres); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	db := orderRepo.DB()
	addressRepo := address.NewPostgresRepository(db)
	couponService := coupon.NewService(coupon.NewPostgresStore(db), cartService)
	sessionRepo := checkout.NewPostgresSessionRepository(db)

	gatewayClient := gateway.NewHTTPClient(gateway.Config{
		BaseURL: cfg.GatewayBaseURL,
		KeyID:   cfg.GatewayKeyID,
		Secret:  cfg.GatewaySecret,
	})
	pincodeClient := address.NewHTTPPincodeClient(cfg.PincodeBaseURL)

	checkoutService := checkout.NewService(
		sessionRepo, cartService, addressRepo, orderRepo, gatewayClient, cfg.Currency)

	// Completed orders flow through the outbox to Kafka, where the
	// fulfillment consumer confirms them.
	poller := order.NewOutboxPoller(orderRepo, cfg.OrdersTopic, cfg.KafkaBrokers...)
	go poller.Run(ctx)
	defer poller.Close()

	consumer := order.NewFulfillmentConsumer(orderRepo, cfg.OrdersTopic, cfg.KafkaBrokers...)
	go consumer.Run(ctx)
	defer consumer.Close()

	router := httpapi.NewRouter(
		httpapi.RouterConfig{
			JWTSecret:      cfg.JWTSecret,
			RequestTimeout: cfg.RequestTimeout,
			AllowedOrigins: cfg.AllowedOrigins,
		},
		httpapi.NewAddressHandler(addressRepo, pincodeClient, cfg.RequestTimeout),
		httpapi.NewCartHandler(cartService, couponService, cfg.RequestTimeout),
		httpapi.NewCheckoutHandler(checkoutService, cfg.RequestTimeout),
		httpapi.NewOrdersHandler(orderRepo, cfg.RequestTimeout),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("checkout server starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
}
