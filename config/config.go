package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every process-wide setting, read once at startup and
// injected into the services that need it.
type Config struct {
	Port    string
	MongoURI string
	MongoDB  string

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr     string
	RedisPassword string

	// Maximum issues a single user may create per day. 0 disables the limit.
	IssueDailyLimit int

	EmailHost string
	EmailPort int
	EmailUser string
	EmailPass string
	EmailFrom string
}

// Load reads the environment (and an optional .env file) into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDB:       getEnv("MONGODB_DB", "civicreport"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTTTL:        30 * 24 * time.Hour,
		RedisAddr:     os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		EmailHost:     os.Getenv("EMAIL_HOST"),
		EmailUser:     os.Getenv("EMAIL_USER"),
		EmailPass:     os.Getenv("EMAIL_PASS"),
		EmailFrom:     getEnv("EMAIL_FROM", "no-reply@example.com"),
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGODB_URI environment variable is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	if v := os.Getenv("JWT_EXPIRES_IN"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRES_IN: %w", err)
		}
		cfg.JWTTTL = ttl
	}

	if v := os.Getenv("EMAIL_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EMAIL_PORT: %w", err)
		}
		cfg.EmailPort = port
	}

	if v := os.Getenv("ISSUE_DAILY_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ISSUE_DAILY_LIMIT: %w", err)
		}
		cfg.IssueDailyLimit = limit
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
