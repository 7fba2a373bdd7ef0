package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quakecache/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// The table is UNLOGGED: cache and counter rows are disposable and skipping
// the WAL keeps writes cheap.
const postgresSchema = `
CREATE UNLOGGED TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS kv_entries_expires_at ON kv_entries (expires_at);
`

// PostgresStore implements Store on PostgreSQL, letting several service
// instances share one cache and one set of rate-limit counters.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
	sweeper
}

// NewPostgresStore creates a connection pool for cfg.DSN and creates the table if needed.
func NewPostgresStore(ctx context.Context, cfg models.DatabaseConfig, cleanupInterval time.Duration) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL store")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &PostgresStore{pool: pool, now: time.Now}
	s.startSweeper(cleanupInterval, s.DeleteExpired)
	return s, nil
}

func (p *PostgresStore) expiry(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := p.now().Add(ttl)
	return &t
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		key, p.now(),
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return []byte(value), nil
}

func (p *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, string(value), p.expiry(ttl),
	)
	if err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	return nil
}

func (p *PostgresStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	// An expired row counts as absent and is overwritten.
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
		 WHERE kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= $4`,
		key, string(value), p.expiry(ttl), p.now(),
	)
	if err != nil {
		return false, fmt.Errorf("postgres setnx %s: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *PostgresStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, '1', $3)
		 ON CONFLICT (key) DO UPDATE SET
			value = CASE WHEN kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= $2
				THEN '1'
				ELSE (kv_entries.value::bigint + 1)::text END,
			expires_at = CASE WHEN kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= $2
				THEN EXCLUDED.expires_at
				ELSE kv_entries.expires_at END
		 WHERE (kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= $2)
			OR kv_entries.value ~ '^[0-9]+$'
		 RETURNING value::bigint`,
		key, p.now(), p.expiry(ttl),
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("incr %s: %w", key, ErrNotInteger)
	}
	if err != nil {
		return 0, fmt.Errorf("postgres incr %s: %w", key, err)
	}
	return n, nil
}

func (p *PostgresStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	now := p.now()
	_, err := p.pool.Exec(ctx,
		`UPDATE kv_entries SET expires_at = $1
		 WHERE key = $2 AND (expires_at IS NULL OR expires_at > $3)`,
		p.expiry(ttl), key, now,
	)
	if err != nil {
		return fmt.Errorf("postgres expire %s: %w", key, err)
	}
	return nil
}

// DeleteExpired removes rows whose expiry has passed and returns how many were removed.
func (p *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		p.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("postgres delete expired: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// Close stops the sweeper and closes the pool.
func (p *PostgresStore) Close() error {
	p.stopSweeper()
	p.pool.Close()
	return nil
}
