package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external services and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir     string // Base directory for the SQLite database
	DatabaseURL string // Optional: postgres:// URL used instead of SQLite

	// Cache settings
	CacheMaxItems int           // Maximum records in the memory cache
	CacheTTL      time.Duration // Cache TTL for assessments

	// HTTP settings
	Host      string
	HTTPPort  int
	RateLimit float64 // Requests per second per client
	RateBurst int

	// Assessment settings
	PredictionTimeout time.Duration
	JWTSecret         string // Optional: enables bearer-token auth

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".pregnancy-risk")

	return &LiteConfig{
		DataDir:           dataDir,
		CacheMaxItems:     1000,
		CacheTTL:          time.Hour,
		Host:              "127.0.0.1",
		HTTPPort:          8080,
		RateLimit:         20,
		RateBurst:         40,
		PredictionTimeout: 30 * time.Second,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

func envKey(name string) string { return EnvPrefix + "_" + name }

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv(envKey("DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	cfg.DatabaseURL = os.Getenv(envKey("DATABASE_URL"))

	// Cache settings
	if v := os.Getenv(envKey("CACHE_MAX_ITEMS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv(envKey("CACHE_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CacheTTL = d
		}
	}

	// HTTP
	if v := os.Getenv(envKey("HOST")); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv(envKey("HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}
	if v := os.Getenv(envKey("RATE_LIMIT")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RateLimit = f
		}
	}
	if v := os.Getenv(envKey("RATE_BURST")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateBurst = n
		}
	}

	if v := os.Getenv(envKey("PREDICTION_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PredictionTimeout = d
		}
	}
	cfg.JWTSecret = os.Getenv(envKey("JWT_SECRET"))

	// Logging
	if v := os.Getenv(envKey("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(envKey("LOG_FORMAT")); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// DatabasePath returns the path to the assessment SQLite database.
func (c *LiteConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, "assessments.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}
