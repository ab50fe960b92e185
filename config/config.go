package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Upstream UpstreamConfig
	Session  SessionConfig
	Checkout CheckoutConfig
	Cache    CacheConfig
	Frontend FrontendConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// UpstreamConfig points at the course backend API.
type UpstreamConfig struct {
	BaseURL    string
	TimeoutSec int
}

// SessionConfig holds JWT signing and session lifetime settings.
type SessionConfig struct {
	JWTSecret   string
	ExpireHours int
}

// CheckoutConfig tunes the payment status poller and settlement dedupe.
type CheckoutConfig struct {
	PollIntervalSec      int
	PollTimeoutSec       int
	ConfirmDelaySec      int
	PendingTxnFallback   bool
	SettleDedupeTTLHours int
}

// CacheConfig holds catalog cache settings.
type CacheConfig struct {
	CourseTTLSec int
}

// FrontendConfig points at the SPA for browser redirects and asset URLs.
type FrontendConfig struct {
	BaseURL   string
	AssetBase string
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Upstream: UpstreamConfig{
			BaseURL:    getEnv("UPSTREAM_BASE_URL", "http://localhost:4000/api"),
			TimeoutSec: getEnvInt("UPSTREAM_TIMEOUT_SEC", 15),
		},
		Session: SessionConfig{
			JWTSecret:   getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Checkout: CheckoutConfig{
			PollIntervalSec:      getEnvInt("CHECKOUT_POLL_INTERVAL_SEC", 3),
			PollTimeoutSec:       getEnvInt("CHECKOUT_POLL_TIMEOUT_SEC", 600),
			ConfirmDelaySec:      getEnvInt("CHECKOUT_CONFIRM_DELAY_SEC", 2),
			PendingTxnFallback:   getEnvBool("CHECKOUT_PENDING_TXN_FALLBACK", true),
			SettleDedupeTTLHours: getEnvInt("SETTLE_DEDUPE_TTL_HOURS", 24),
		},
		Cache: CacheConfig{
			CourseTTLSec: getEnvInt("COURSE_CACHE_TTL_SEC", 300),
		},
		Frontend: FrontendConfig{
			BaseURL:   getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
			AssetBase: getEnv("ASSET_BASE_URL", "http://localhost:4000"),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
