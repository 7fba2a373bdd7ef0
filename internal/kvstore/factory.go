package kvstore

import (
	"context"
	"fmt"
	"log/slog"

	"quakecache/internal/models"
)

// Factory provides a centralized way to create stores based on configuration.
type Factory struct{}

// NewFactory creates a new store factory
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates a store based on the provided configuration.
// Supported backends:
//   - memory: in-process map (development, tests, single instance)
//   - redis: Redis server (shared, production)
//   - sqlite: SQLite file (single node, survives restarts)
//   - postgres: PostgreSQL UNLOGGED table (shared)
func (f *Factory) Create(ctx context.Context, config models.StoreConfig) (Store, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}

	switch config.Type {
	case models.StoreTypeMemory:
		return NewMemoryStore(WithCleanupInterval(config.CleanupInterval)), nil
	case models.StoreTypeRedis:
		return NewRedisStore(ctx, config.Redis)
	case models.StoreTypeSQLite:
		return NewSQLiteStore(ctx, config.Database, config.CleanupInterval)
	case models.StoreTypePostgres:
		return NewPostgresStore(ctx, config.Database, config.CleanupInterval)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

// CreateOrDefer is Create for service startup. An invalid configuration is
// still an error, but a backend that cannot be reached yet is replaced by a
// DeferredStore that keeps reconnecting, so the service starts degraded.
func (f *Factory) CreateOrDefer(ctx context.Context, config models.StoreConfig, opts ...DeferredOption) (Store, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}

	store, err := f.Create(ctx, config)
	if err == nil {
		return store, nil
	}

	slog.Warn("Store unreachable at startup, serving degraded until it connects",
		"type", config.Type,
		"error", err,
	)
	return NewDeferredStore(func(ctx context.Context) (Store, error) {
		return f.Create(ctx, config)
	}, opts...), nil
}

// GetSupportedProviders returns a list of all supported store types
func (f *Factory) GetSupportedProviders() []string {
	return []string{models.StoreTypeMemory, models.StoreTypeRedis, models.StoreTypeSQLite, models.StoreTypePostgres}
}

// ValidateConfig validates that a store configuration is valid for its type
func (f *Factory) ValidateConfig(config models.StoreConfig) error {
	switch config.Type {
	case models.StoreTypeMemory:
		// Memory store requires no additional configuration
	case models.StoreTypeRedis:
		if config.Redis.Addr == "" && config.Redis.URL == "" {
			return fmt.Errorf("redis address or URL is required for redis store")
		}
	case models.StoreTypeSQLite, models.StoreTypePostgres:
		if config.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s store", config.Type)
		}
	default:
		return fmt.Errorf("unsupported store type: %s", config.Type)
	}
	return nil
}
