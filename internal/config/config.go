package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const defaultCommissionRate = "0.085"

type Config struct {
	AppEnv            string
	Port              string
	DatabaseURL       string
	RedisURL          string
	WebhookSecret     string
	CommissionRate    decimal.Decimal
	HeartbeatInterval time.Duration
	LogLevel          string
	LogFormat         string

	// Websocket connection limits per instance.
	WSMaxConnections int64
	WSMaxPerIP       int
	WSConnRate       float64
	WSConnBurst      int

	// Per-IP request limits on the webhook and API routes.
	HTTPRate  float64
	HTTPBurst int
}

func Load() (*Config, error) {
	// Best-effort .env loading for local development; real deployments set
	// the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET is required")
	}
	if len(cfg.WebhookSecret) < 10 || len(cfg.WebhookSecret) > 100 {
		return nil, fmt.Errorf("WEBHOOK_SECRET must be between 10 and 100 characters")
	}

	rate, err := decimal.NewFromString(getEnv("COMMISSION_RATE", defaultCommissionRate))
	if err != nil {
		return nil, fmt.Errorf("COMMISSION_RATE must be a decimal number: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("COMMISSION_RATE must be in [0, 1), got %s", rate)
	}
	cfg.CommissionRate = rate

	interval, err := time.ParseDuration(getEnv("HEARTBEAT_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("HEARTBEAT_INTERVAL must be a duration: %w", err)
	}
	if interval < time.Second {
		return nil, fmt.Errorf("HEARTBEAT_INTERVAL must be at least 1s, got %s", interval)
	}
	cfg.HeartbeatInterval = interval

	maxConns, err := strconv.ParseInt(getEnv("WS_MAX_CONNECTIONS", "10000"), 10, 64)
	if err != nil || maxConns < 1 {
		return nil, fmt.Errorf("WS_MAX_CONNECTIONS must be a positive integer")
	}
	cfg.WSMaxConnections = maxConns

	maxPerIP, err := strconv.Atoi(getEnv("WS_MAX_PER_IP", "20"))
	if err != nil || maxPerIP < 1 {
		return nil, fmt.Errorf("WS_MAX_PER_IP must be a positive integer")
	}
	cfg.WSMaxPerIP = maxPerIP

	connRate, err := strconv.ParseFloat(getEnv("WS_CONN_RATE", "10"), 64)
	if err != nil || connRate <= 0 {
		return nil, fmt.Errorf("WS_CONN_RATE must be a positive number")
	}
	cfg.WSConnRate = connRate

	connBurst, err := strconv.Atoi(getEnv("WS_CONN_BURST", "10"))
	if err != nil || connBurst < 1 {
		return nil, fmt.Errorf("WS_CONN_BURST must be a positive integer")
	}
	cfg.WSConnBurst = connBurst

	httpRate, err := strconv.ParseFloat(getEnv("HTTP_RATE", "50"), 64)
	if err != nil || httpRate <= 0 {
		return nil, fmt.Errorf("HTTP_RATE must be a positive number")
	}
	cfg.HTTPRate = httpRate

	httpBurst, err := strconv.Atoi(getEnv("HTTP_BURST", "100"))
	if err != nil || httpBurst < 1 {
		return nil, fmt.Errorf("HTTP_BURST must be a positive integer")
	}
	cfg.HTTPBurst = httpBurst

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
