package main

import (
	"os"
	"strconv"
	"time"

	"github.com/marigold-cafe/pos-backend/pkg/square"
)

// Config is built once in main from the environment and passed into
// constructors. Nothing below this boundary reads ambient process state, so
// components stay testable without environment manipulation.
type Config struct {
	Port           string
	DatabaseURL    string
	RedisAddr      string
	JWTSecret      string
	AccessTokenTTL time.Duration
	NotifyQueueKey string
	Square         square.Config
}

func loadConfig() Config {
	return Config{
		Port:           getenv("PORT", "8081"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:      getenv("JWT_SECRET", "dev_change_me"),
		AccessTokenTTL: minutesEnv("ACCESS_TOKEN_TTL_MIN", 60),
		NotifyQueueKey: getenv("NOTIFY_QUEUE_KEY", ""),
		Square: square.Config{
			BaseURL:       getenv("SQUARE_BASE_URL", "https://connect.squareup.com"),
			AccessToken:   os.Getenv("SQUARE_ACCESS_TOKEN"),
			WebhookSecret: os.Getenv("SQUARE_WEBHOOK_SECRET"),
			LocationID:    os.Getenv("SQUARE_LOCATION_ID"),
			Timeout:       5 * time.Second,
		},
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func minutesEnv(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return time.Duration(i) * time.Minute
		}
	}
	return time.Duration(def) * time.Minute
}
