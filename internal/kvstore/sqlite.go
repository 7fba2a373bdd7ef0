package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"quakecache/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS kv_entries_expires_at ON kv_entries (expires_at);
`

// SQLiteStore implements Store on a single SQLite database. Expiry is kept as
// unix milliseconds in expires_at (NULL for no expiry) and enforced on read.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
	sweeper
}

// NewSQLiteStore opens the database at cfg.DSN and creates the table if needed.
func NewSQLiteStore(ctx context.Context, cfg models.DatabaseConfig, cleanupInterval time.Duration) (*SQLiteStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("connection string is required for SQLite store")
	}

	db, err := sql.Open("sqlite", sqliteDSN(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	s.startSweeper(cleanupInterval, s.DeleteExpired)
	return s, nil
}

// sqliteDSN adds a busy timeout so concurrent processes wait instead of failing.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

func (s *SQLiteStore) nowMillis() int64 {
	return s.now().UnixMilli()
}

func (s *SQLiteStore) expiryMillis(ttl time.Duration) sql.NullInt64 {
	if ttl <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: s.now().Add(ttl).UnixMilli(), Valid: true}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, s.nowMillis(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, string(value), s.expiryMillis(ttl),
	)
	if err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	// An expired row counts as absent and is overwritten.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		 WHERE kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= ?`,
		key, string(value), s.expiryMillis(ttl), s.nowMillis(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite setnx %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite setnx %s: %w", key, err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES (?1, '1', ?3)
		 ON CONFLICT (key) DO UPDATE SET
			value = CASE WHEN kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= ?2
				THEN '1'
				ELSE CAST(CAST(kv_entries.value AS INTEGER) + 1 AS TEXT) END,
			expires_at = CASE WHEN kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= ?2
				THEN excluded.expires_at
				ELSE kv_entries.expires_at END
		 WHERE (kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= ?2)
			OR (kv_entries.value <> '' AND kv_entries.value NOT GLOB '*[^0-9]*')
		 RETURNING CAST(value AS INTEGER)`,
		key, s.nowMillis(), s.expiryMillis(ttl),
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("incr %s: %w", key, ErrNotInteger)
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite incr %s: %w", key, err)
	}
	return n, nil
}

func (s *SQLiteStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE kv_entries SET expires_at = ?
		 WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		s.expiryMillis(ttl), key, s.nowMillis(),
	)
	if err != nil {
		return fmt.Errorf("sqlite expire %s: %w", key, err)
	}
	return nil
}

// DeleteExpired removes rows whose expiry has passed and returns how many were removed.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		s.nowMillis(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite delete expired: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

// Close stops the sweeper and closes the database.
func (s *SQLiteStore) Close() error {
	s.stopSweeper()
	return s.db.Close()
}
