package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the gateway process.
type Config struct {
	// HTTP listener
	BindAddr string

	// Backing stores
	DatabaseURL string
	RedisURL    string

	// Logging
	LogLevel string
	LogFile  string

	// Fan-out behavior
	MaxConnsPerUser     int
	TopicBuffer         int
	ReapIntervalSeconds int
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BindAddr:            getEnvOrDefault("WRYFT_BIND_ADDR", "0.0.0.0:3001"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		LogLevel:            getEnvOrDefault("WRYFT_LOG_LEVEL", "info"),
		LogFile:             getEnvOrDefault("WRYFT_LOG_FILE", "logs/wryft_gateway.log"),
		MaxConnsPerUser:     getEnvIntOrDefault("WRYFT_MAX_CONNS_PER_USER", 5),
		TopicBuffer:         getEnvIntOrDefault("WRYFT_TOPIC_BUFFER", 100),
		ReapIntervalSeconds: getEnvIntOrDefault("WRYFT_REAP_INTERVAL_SECONDS", 300),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
