// Package kvstore provides the shared key-value store used by both the
// read-through cache and the fixed-window rate limiter.
//
// The contract is a narrow subset of Redis semantics so that every backend
// (memory, redis, sqlite, postgres) behaves the same way:
//   - a missing or expired key reads as ErrNotFound
//   - a non-positive ttl means the key does not expire
//   - Incr is atomic; when it creates a missing or expired key at 1 the ttl
//     is applied in the same operation, and an existing expiry is never touched
package kvstore

import (
	"context"
	"time"
)

// Store is the key-value capability injected into the cache gateway and the
// rate limiter. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value and expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only if key is absent. It reports whether the write happened.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Incr atomically increments the integer stored under key and returns the
	// new value. ttl is applied only when the call creates the key.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Expire sets the expiry of an existing key. Missing keys are ignored.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases connections and background goroutines.
	Close() error
}
