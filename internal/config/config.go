package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string
	Storage  string

	DBHost string
	DBPort string
	DBUser string
	DBPass string
	DBName string

	RedisAddr     string
	KafkaBrokers  []string
	OrderTopic    string
	ConsumerGroup string

	JWTSecret         string
	PricingServiceURL string

	CartTTL           time.Duration
	ProductCacheTTL   time.Duration
	PaymentWindow     time.Duration
	RateLimit         float64
	RateBurst         int
	LowStockThreshold int
}

func Load() Config {
	return Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8082"),
		Storage:  getEnv("STORAGE", "mysql"),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "3306"),
		DBUser: getEnv("DB_USER", "root"),
		DBPass: getEnv("DB_PASS", ""),
		DBName: getEnv("DB_NAME", "marketplace"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "localhost:9092,localhost:9093,localhost:9094")),
		OrderTopic:    getEnv("ORDER_TOPIC", "order-topic"),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "marketplace-service-group"),

		JWTSecret:         getEnv("JWT_SECRET", "secret"),
		PricingServiceURL: getEnv("PRICING_SERVICE_URL", ""),

		CartTTL:           getDuration("CART_TTL", 72*time.Hour),
		ProductCacheTTL:   getDuration("PRODUCT_CACHE_TTL", time.Minute),
		PaymentWindow:     getDuration("PAYMENT_WINDOW", 24*time.Hour),
		RateLimit:         getFloat("RATE_LIMIT", 10),
		RateBurst:         getInt("RATE_BURST", 30),
		LowStockThreshold: getInt("LOW_STOCK_THRESHOLD", 10),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
