package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"quakecache/internal/kvstore"
)

// KeyPrefix namespaces rate-limit counters in the shared store.
const KeyPrefix = "rate-limit:"

// Key returns the counter key for identity.
func Key(identity string) string {
	return KeyPrefix + identity
}

// FixedWindowLimiter counts requests per identity in fixed windows.
//
// The counter is created with SetNX and an expiry equal to the window, then
// advanced with the store's atomic Incr, which leaves the expiry untouched.
// If the window lapses between the read and the increment, Incr recreates the
// counter with the window as its expiry in the same store operation, so no
// counter outlives its window. An increment that overshoots the capacity (two
// requests racing past the read) is denied.
type FixedWindowLimiter struct {
	store        kvstore.Store
	limit        int
	window       time.Duration
	storeTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a FixedWindowLimiter.
type Option func(*FixedWindowLimiter)

// WithStoreTimeout bounds each admission's store calls. Zero disables the bound.
func WithStoreTimeout(d time.Duration) Option {
	return func(l *FixedWindowLimiter) { l.storeTimeout = d }
}

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *FixedWindowLimiter) { l.logger = logger }
}

// NewFixedWindowLimiter creates a limiter admitting limit requests per window for each identity.
func NewFixedWindowLimiter(store kvstore.Store, limit int, window time.Duration, opts ...Option) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		store:  store,
		limit:  limit,
		window: window,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the capacity per window.
func (l *FixedWindowLimiter) Limit() int { return l.limit }

// Window returns the window length.
func (l *FixedWindowLimiter) Window() time.Duration { return l.window }

// Admit implements Limiter.
func (l *FixedWindowLimiter) Admit(ctx context.Context, identity string) Decision {
	if l.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.storeTimeout)
		defer cancel()
	}

	key := Key(identity)

	count, err := l.current(ctx, key)
	if err != nil {
		return l.failOpen(identity, err)
	}

	if count <= 0 {
		created, err := l.store.SetNX(ctx, key, []byte("1"), l.window)
		if err != nil {
			return l.failOpen(identity, err)
		}
		if created {
			return Decision{
				Allowed:   true,
				Remaining: l.limit - 1,
				Known:     true,
				Limit:     l.limit,
				ResetAt:   l.now().Add(l.window),
			}
		}
		// Another request created the window first; count this one against it.
	} else if count >= l.limit {
		return l.denied()
	}

	n, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return l.failOpen(identity, err)
	}

	var resetAt time.Time
	if n == 1 {
		resetAt = l.now().Add(l.window)
	}

	if n > int64(l.limit) {
		return l.denied()
	}

	return Decision{
		Allowed:   true,
		Remaining: l.limit - int(n),
		Known:     true,
		Limit:     l.limit,
		ResetAt:   resetAt,
	}
}

// current reads the counter, treating a missing key as zero.
func (l *FixedWindowLimiter) current(ctx context.Context, key string) (int, error) {
	raw, err := l.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("counter %s: %w", key, kvstore.ErrNotInteger)
	}
	return n, nil
}

func (l *FixedWindowLimiter) denied() Decision {
	return Decision{
		Allowed:   false,
		Remaining: 0,
		Known:     true,
		Limit:     l.limit,
	}
}

func (l *FixedWindowLimiter) failOpen(identity string, err error) Decision {
	l.logger.Warn("Rate limit store unavailable, admitting request",
		"identity", identity,
		"error", err,
	)
	return Decision{
		Allowed: true,
		Known:   false,
		Limit:   l.limit,
	}
}
