package kvstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrUnavailable is returned by a DeferredStore until its backend connects.
var ErrUnavailable = errors.New("store not connected")

// ConnectFunc opens a backend.
type ConnectFunc func(ctx context.Context) (Store, error)

// DeferredStore stands in for a backend that was unreachable at startup. Every
// call fails with ErrUnavailable while connect is retried in the background;
// once a connection succeeds all calls go to the connected backend.
type DeferredStore struct {
	connect        ConnectFunc
	baseDelay      time.Duration
	maxDelay       time.Duration
	attemptTimeout time.Duration

	mu    sync.RWMutex
	inner Store

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// DeferredOption configures a DeferredStore.
type DeferredOption func(*DeferredStore)

// WithRetryDelays sets the first and the largest wait between connection attempts.
func WithRetryDelays(base, maxDelay time.Duration) DeferredOption {
	return func(d *DeferredStore) {
		d.baseDelay = base
		d.maxDelay = maxDelay
	}
}

// WithAttemptTimeout bounds each connection attempt.
func WithAttemptTimeout(timeout time.Duration) DeferredOption {
	return func(d *DeferredStore) { d.attemptTimeout = timeout }
}

// NewDeferredStore starts connecting in the background and returns immediately.
func NewDeferredStore(connect ConnectFunc, opts ...DeferredOption) *DeferredStore {
	d := &DeferredStore{
		connect:        connect,
		baseDelay:      time.Second,
		maxDelay:       30 * time.Second,
		attemptTimeout: 30 * time.Second,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	go d.run(ctx)
	return d
}

func (d *DeferredStore) run(ctx context.Context) {
	defer close(d.done)

	backoff := retry.WithCappedDuration(d.maxDelay, retry.NewExponential(d.baseDelay))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
		defer cancel()

		s, err := d.connect(attemptCtx)
		if err != nil {
			slog.Warn("Store still unreachable, retrying", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}

		d.mu.Lock()
		d.inner = s
		d.mu.Unlock()
		return nil
	})
	if err != nil {
		return
	}
	slog.Info("Store connected", "attempts", attempt)
}

// Connected reports whether the backend has been reached.
func (d *DeferredStore) Connected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inner != nil
}

func (d *DeferredStore) backend() (Store, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.inner == nil {
		return nil, ErrUnavailable
	}
	return d.inner, nil
}

func (d *DeferredStore) Get(ctx context.Context, key string) ([]byte, error) {
	s, err := d.backend()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, key)
}

func (d *DeferredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s, err := d.backend()
	if err != nil {
		return err
	}
	return s.Set(ctx, key, value, ttl)
}

func (d *DeferredStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s, err := d.backend()
	if err != nil {
		return false, err
	}
	return s.SetNX(ctx, key, value, ttl)
}

func (d *DeferredStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s, err := d.backend()
	if err != nil {
		return 0, err
	}
	return s.Incr(ctx, key, ttl)
}

func (d *DeferredStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s, err := d.backend()
	if err != nil {
		return err
	}
	return s.Expire(ctx, key, ttl)
}

func (d *DeferredStore) Ping(ctx context.Context) error {
	s, err := d.backend()
	if err != nil {
		return err
	}
	return s.Ping(ctx)
}

// Close stops the connection attempts and closes the backend if one was opened.
func (d *DeferredStore) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.cancel()
		<-d.done

		d.mu.Lock()
		defer d.mu.Unlock()
		if d.inner != nil {
			err = d.inner.Close()
		}
	})
	return err
}
