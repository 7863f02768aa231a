// Package config loads service configuration from files, environment
// variables and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pregnancycare-risk-service/internal/database"
	"github.com/pregnancycare-risk-service/internal/domain"
	"github.com/pregnancycare-risk-service/internal/service"
)

// EnvPrefix is prepended to every environment override, e.g. PREGNANCY_RISK_SERVER_PORT.
const EnvPrefix = "PREGNANCY_RISK"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerWithFile("")
}

// NewManagerWithFile loads configuration from an explicit file. An empty path
// searches the default locations.
func NewManagerWithFile(path string) (*Manager, error) {
	m := &Manager{configFile: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/pregnancy-risk/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; defaults and environment variables apply without one.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.tls_enabled", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "pregnancy_risk")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.auto_migrate", true)

	// Cache defaults
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Model serving defaults
	v.SetDefault("models.base_url", "http://localhost:8501")
	v.SetDefault("models.version", "v1")
	v.SetDefault("models.timeout", "10s")
	v.SetDefault("models.prediction_timeout", "30s")
	v.SetDefault("models.rate_limit", 50)
	v.SetDefault("models.breaker.max_requests", 5)
	v.SetDefault("models.breaker.interval", "30s")
	v.SetDefault("models.breaker.timeout", "60s")
	v.SetDefault("models.breaker.min_requests", 3)
	v.SetDefault("models.breaker.failure_ratio", 0.6)

	// Risk weights
	v.SetDefault("risk.weights", map[string]float64{
		string(domain.Preeclampsia):        0.4,
		string(domain.GestationalDiabetes): 0.3,
		string(domain.PretermBirth):        0.3,
	})

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetModelConfig returns model-serving configuration
func (m *Manager) GetModelConfig() *domain.ModelConfig {
	return &m.config.Models
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	return Validate(m.config)
}

// Validate checks a configuration for values the service cannot run with.
func Validate(config *domain.Config) error {
	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.TLSEnabled && (config.Server.CertFile == "" || config.Server.KeyFile == "") {
		return fmt.Errorf("TLS enabled but cert_file or key_file is missing")
	}

	// Validate database configuration
	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if config.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if config.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}

	// Validate cache configuration
	if config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required")
	}

	// Validate model configuration
	if config.Models.BaseURL == "" {
		return fmt.Errorf("model base URL is required")
	}
	if config.Models.PredictionTimeout < 0 {
		return fmt.Errorf("invalid prediction timeout: %s", config.Models.PredictionTimeout)
	}
	if ratio := config.Models.Breaker.FailureRatio; ratio < 0 || ratio > 1 {
		return fmt.Errorf("invalid breaker failure ratio: %v", ratio)
	}

	// Validate the aggregation weights
	if _, err := service.WeightsFromConfig(config.Risk.Weights); err != nil {
		return fmt.Errorf("invalid risk weights: %w", err)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	return database.ConfigFromSettings(m.config.Database).DSN()
}

// GetDatabaseURL returns the postgres:// URL used by migrations
func (m *Manager) GetDatabaseURL() string {
	return database.ConfigFromSettings(m.config.Database).URL()
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
