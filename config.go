package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yashrajoria/storefront-service/common/logger"
	"github.com/yashrajoria/storefront-service/database"
	aws_pkg "github.com/yashrajoria/storefront-service/pkg/aws"
)

const (
	dbSecretName  = "storefront/DB_CREDENTIALS"
	jwtSecretName = "storefront/JWT_SECRET"
)

type Config struct {
	Port        string
	Env         string
	ServiceName string

	Postgres database.PostgresConfig
	RedisURL string
	CartTTL  time.Duration

	KafkaBrokers     string
	OrderEventsTopic string
	OrderSNSTopicArn string

	JWTSecret     string
	SecureCookies bool

	// TrustGatewayHeader accepts X-User-Name as the caller's identity. Only
	// safe when every request arrives through the gateway.
	TrustGatewayHeader bool

	RateLimitRPS   float64
	RateLimitBurst int
}

// secretSource is the part of the Secrets Manager client LoadConfig needs.
type secretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
	GetSecretJSON(ctx context.Context, name string) (map[string]string, error)
}

func LoadConfig() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := configFromEnv()
	if err != nil {
		return nil, err
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		ctx := context.Background()
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			logger.Log.Warn("AWS config unavailable, keeping environment credentials", zap.Error(err))
		} else {
			applySecrets(ctx, cfg, aws_pkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFromEnv() (*Config, error) {
	cartTTL, err := time.ParseDuration(getEnv("CART_TTL", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid CART_TTL: %w", err)
	}
	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	env := getEnv("APP_ENV", "development")
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         env,
		ServiceName: getEnv("SERVICE_NAME", "storefront-service"),
		Postgres: database.PostgresConfig{
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   os.Getenv("POSTGRES_DB"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		RedisURL:         getEnv("REDIS_URL", "redis://redis:6379"),
		CartTTL:          cartTTL,
		KafkaBrokers:     os.Getenv("KAFKA_BROKERS"),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order.confirmed"),
		OrderSNSTopicArn: os.Getenv("ORDER_SNS_TOPIC_ARN"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		SecureCookies:    env == "production",
		RateLimitRPS:     rps,
		RateLimitBurst:   burst,

		TrustGatewayHeader: getEnv("TRUST_GATEWAY_HEADER", "true") == "true",
	}, nil
}

// applySecrets overrides database credentials and the JWT secret with
// whatever Secrets Manager holds. Missing secrets keep the env values.
func applySecrets(ctx context.Context, cfg *Config, sm secretSource) {
	if m, err := sm.GetSecretJSON(ctx, dbSecretName); err == nil {
		override(&cfg.Postgres.User, m["POSTGRES_USER"])
		override(&cfg.Postgres.Password, m["POSTGRES_PASSWORD"])
		override(&cfg.Postgres.DBName, m["POSTGRES_DB"])
		override(&cfg.Postgres.Host, m["POSTGRES_HOST"])
		override(&cfg.Postgres.Port, m["POSTGRES_PORT"])
	} else {
		logger.Log.Warn("DB credentials secret not loaded", zap.String("secret", dbSecretName), zap.Error(err))
	}

	if s, err := sm.GetSecret(ctx, jwtSecretName); err == nil {
		override(&cfg.JWTSecret, s)
	} else {
		logger.Log.Warn("JWT secret not loaded", zap.String("secret", jwtSecretName), zap.Error(err))
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) validate() error {
	p := c.Postgres
	if p.User == "" || p.Password == "" || p.DBName == "" || p.Host == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.CartTTL <= 0 {
		return fmt.Errorf("CART_TTL must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
