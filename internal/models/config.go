// Package models - Service configuration and operational settings.
// This file defines the configuration structures for every service component.
//
// Configuration layout:
// - Hierarchical configuration grouped by component (server, store, cache, etc.)
// - Defaults that run out of the box against an in-memory store
// - Validation per section so misconfigurations fail at startup
package models

import (
	"errors"
	"fmt"
	"time"
)

// Store type constants
const (
	StoreTypeMemory   = "memory"
	StoreTypeRedis    = "redis"
	StoreTypeSQLite   = "sqlite"
	StoreTypePostgres = "postgres"
)

// Trace exporter constants
const (
	TraceExporterStdout = "stdout"
	TraceExporterOTLP   = "otlp"
)

// Config is the root configuration structure containing all service settings.
//
// Configuration Structure:
// - Server: HTTP server and network settings
// - Store: shared key-value store backing both the cache and the rate limiter
// - Cache: read-through cache TTLs and store call timeouts
// - RateLimit: fixed-window client throttling
// - Upstream: USGS event service client
// - Logging: Structured logging and output configuration
// - Metrics / Observability: Prometheus endpoint and OpenTelemetry tracing
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Store         StoreConfig         `yaml:"store" json:"store"`
	Cache         CacheConfig         `yaml:"cache" json:"cache"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`
	Upstream      UpstreamConfig      `yaml:"upstream" json:"upstream"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

// StoreConfig selects the key-value backend shared by the cache and the limiter.
// CleanupInterval drives the background sweep of expired keys for the memory
// and SQL backends; redis expires keys itself.
type StoreConfig struct {
	Type            string         `yaml:"type" json:"type"`
	CleanupInterval time.Duration  `yaml:"cleanup_interval" json:"cleanup_interval"`
	Redis           RedisConfig    `yaml:"redis" json:"redis"`
	Database        DatabaseConfig `yaml:"database" json:"database"`
}

type RedisConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	URL          string        `yaml:"url" json:"url"`
	Password     string        `yaml:"password" json:"password"`
	DB           int           `yaml:"db" json:"db"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// CacheConfig controls the read-through cache gateway.
type CacheConfig struct {
	EventTTL     time.Duration `yaml:"event_ttl" json:"event_ttl"`
	QueryTTL     time.Duration `yaml:"query_ttl" json:"query_ttl"`
	StoreTimeout time.Duration `yaml:"store_timeout" json:"store_timeout"`
	DefaultLimit int           `yaml:"default_limit" json:"default_limit"`
	DefaultOrder string        `yaml:"default_order" json:"default_order"`
}

// RateLimitConfig controls the fixed-window limiter.
type RateLimitConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	Requests     int           `yaml:"requests" json:"requests"`
	Window       time.Duration `yaml:"window" json:"window"`
	StoreTimeout time.Duration `yaml:"store_timeout" json:"store_timeout"`
}

// UpstreamConfig configures the USGS event service client.
type UpstreamConfig struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with working defaults.
//
// Default Values:
// - Port 8080, 30-second timeouts
// - In-memory store: no external dependency for local runs
// - 600s single-event TTL, 300s collection TTL
// - 3 requests per 60s window per client identity
// - USGS FDSN event endpoint, paced at 5 requests/second
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSEnabled:   false,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "OPTIONS"},
				AllowedHeaders: []string{"*"},
				MaxAge:         86400,
			},
		},
		Store: StoreConfig{
			Type:            StoreTypeMemory,
			CleanupInterval: time.Minute,
			Redis: RedisConfig{
				Addr:         "localhost:6379",
				PoolSize:     10,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
			Database: DatabaseConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			EventTTL:     600 * time.Second,
			QueryTTL:     300 * time.Second,
			StoreTimeout: 500 * time.Millisecond,
			DefaultLimit: DefaultQueryLimit,
			DefaultOrder: OrderByTime,
		},
		RateLimit: RateLimitConfig{
			Enabled:      true,
			Requests:     3,
			Window:       60 * time.Second,
			StoreTimeout: 500 * time.Millisecond,
		},
		Upstream: UpstreamConfig{
			BaseURL:           "https://earthquake.usgs.gov/fdsnws/event/1/",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "quakecache",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   TraceExporterStdout,
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("invalid cache config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit config: %w", err)
	}

	if err := c.Upstream.Validate(); err != nil {
		return fmt.Errorf("invalid upstream config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StoreConfig) Validate() error {
	if stc.CleanupInterval < 0 {
		return errors.New("cleanup interval cannot be negative")
	}
	switch stc.Type {
	case StoreTypeMemory:
		return nil
	case StoreTypeRedis:
		if stc.Redis.Addr == "" && stc.Redis.URL == "" {
			return errors.New("redis address or URL is required for redis store")
		}
		if stc.Redis.PoolSize < 0 {
			return errors.New("redis pool size cannot be negative")
		}
	case StoreTypeSQLite, StoreTypePostgres:
		if stc.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s store", stc.Type)
		}
	default:
		return fmt.Errorf("invalid store type: %s", stc.Type)
	}
	return nil
}

func (cc *CacheConfig) Validate() error {
	if cc.EventTTL <= 0 {
		return errors.New("event TTL must be positive")
	}
	if cc.QueryTTL <= 0 {
		return errors.New("query TTL must be positive")
	}
	if cc.StoreTimeout < 0 {
		return errors.New("store timeout cannot be negative")
	}
	if cc.DefaultLimit <= 0 || cc.DefaultLimit > MaxQueryLimit {
		return fmt.Errorf("default limit must be between 1 and %d", MaxQueryLimit)
	}
	if !IsValidOrderBy(cc.DefaultOrder) {
		return fmt.Errorf("invalid default order: %s", cc.DefaultOrder)
	}
	return nil
}

func (rc *RateLimitConfig) Validate() error {
	if !rc.Enabled {
		return nil
	}
	if rc.Requests <= 0 {
		return errors.New("requests per window must be positive")
	}
	if rc.Window < time.Second {
		return errors.New("window must be at least one second")
	}
	if rc.StoreTimeout < 0 {
		return errors.New("store timeout cannot be negative")
	}
	return nil
}

func (uc *UpstreamConfig) Validate() error {
	if uc.BaseURL == "" {
		return errors.New("base URL cannot be empty")
	}
	if uc.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	if uc.RequestsPerSecond < 0 {
		return errors.New("requests per second cannot be negative")
	}
	if uc.RequestsPerSecond > 0 && uc.Burst <= 0 {
		return errors.New("burst must be positive when requests per second is set")
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	found := false
	for _, vl := range validLevels {
		if lc.Level == vl {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	validFormats := []string{"json", "text"}
	found = false
	for _, vf := range validFormats {
		if lc.Format == vf {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	found = false
	for _, vo := range validOutputs {
		if lc.Output == vo {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}
	if !oc.Tracing.Enabled {
		return nil
	}
	switch oc.Tracing.Exporter {
	case TraceExporterStdout:
	case TraceExporterOTLP:
		if oc.Tracing.OTLPEndpoint == "" {
			return errors.New("OTLP endpoint is required for otlp exporter")
		}
	default:
		return fmt.Errorf("unsupported trace exporter: %s", oc.Tracing.Exporter)
	}
	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}
	return nil
}
