package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"quakecache/internal/models"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "QUAKECACHE_"

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

func envString(name string, dst *string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(name string, dst *float64) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(name string, dst *bool) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = strings.ToLower(v) == "true"
	}
}

func envDuration(name string, dst *time.Duration) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// loadFromEnvironment loads configuration from environment variables.
// Malformed numeric and duration values are ignored and leave the file or default value in place.
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	envInt("PORT", &config.Server.Port)
	envString("HOST", &config.Server.Host)
	envDuration("READ_TIMEOUT", &config.Server.ReadTimeout)
	envDuration("WRITE_TIMEOUT", &config.Server.WriteTimeout)
	envDuration("IDLE_TIMEOUT", &config.Server.IdleTimeout)
	envBool("TLS_ENABLED", &config.Server.TLSEnabled)
	envString("TLS_CERT_FILE", &config.Server.TLSCertFile)
	envString("TLS_KEY_FILE", &config.Server.TLSKeyFile)

	// Store configuration
	envString("STORE_TYPE", &config.Store.Type)
	envString("REDIS_ADDR", &config.Store.Redis.Addr)
	envString("REDIS_URL", &config.Store.Redis.URL)
	envString("REDIS_PASSWORD", &config.Store.Redis.Password)
	envInt("REDIS_DB", &config.Store.Redis.DB)
	envInt("REDIS_POOL_SIZE", &config.Store.Redis.PoolSize)
	envString("DATABASE_DSN", &config.Store.Database.DSN)
	envInt("DATABASE_MAX_OPEN_CONNS", &config.Store.Database.MaxOpenConns)
	envInt("DATABASE_MAX_IDLE_CONNS", &config.Store.Database.MaxIdleConns)
	envDuration("STORE_CLEANUP_INTERVAL", &config.Store.CleanupInterval)

	// Cache configuration
	envDuration("CACHE_EVENT_TTL", &config.Cache.EventTTL)
	envDuration("CACHE_QUERY_TTL", &config.Cache.QueryTTL)
	envDuration("CACHE_STORE_TIMEOUT", &config.Cache.StoreTimeout)
	envInt("CACHE_DEFAULT_LIMIT", &config.Cache.DefaultLimit)
	envString("CACHE_DEFAULT_ORDER", &config.Cache.DefaultOrder)

	// Rate limit configuration
	envBool("RATE_LIMIT_ENABLED", &config.RateLimit.Enabled)
	envInt("RATE_LIMIT_REQUESTS", &config.RateLimit.Requests)
	envDuration("RATE_LIMIT_WINDOW", &config.RateLimit.Window)
	envDuration("RATE_LIMIT_STORE_TIMEOUT", &config.RateLimit.StoreTimeout)

	// Upstream configuration
	envString("UPSTREAM_BASE_URL", &config.Upstream.BaseURL)
	envDuration("UPSTREAM_TIMEOUT", &config.Upstream.Timeout)
	envString("UPSTREAM_USER_AGENT", &config.Upstream.UserAgent)
	envFloat("UPSTREAM_REQUESTS_PER_SECOND", &config.Upstream.RequestsPerSecond)
	envInt("UPSTREAM_BURST", &config.Upstream.Burst)

	// Logging configuration
	envString("LOG_LEVEL", &config.Logging.Level)
	envString("LOG_FORMAT", &config.Logging.Format)
	envString("LOG_OUTPUT", &config.Logging.Output)
	envString("LOG_FILE_PATH", &config.Logging.FilePath)

	// Metrics configuration
	envBool("METRICS_ENABLED", &config.Metrics.Enabled)
	envString("METRICS_PATH", &config.Metrics.Path)
	envInt("METRICS_PORT", &config.Metrics.Port)

	// Observability configuration
	envString("SERVICE_NAME", &config.Observability.ServiceName)
	envBool("TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	envString("TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	envString("TRACING_OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)
	envFloat("TRACING_SAMPLE_RATE", &config.Observability.Tracing.SampleRate)
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()

	// Example redis-backed deployment
	config.Store.Type = models.StoreTypeRedis
	config.Store.Redis.Addr = "localhost:6379"

	// Example TLS configuration
	config.Server.TLSEnabled = false
	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
