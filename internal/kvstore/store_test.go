package kvstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// storeFactory builds a fresh store. When the backend honours an injected
// clock it is returned so time-dependent cases can run.
type storeFactory func(t *testing.T) (Store, *fakeClock)

// runStoreSuite exercises the behaviour every backend must share.
func runStoreSuite(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		s, _ := newStore(t)
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("SetGet", func(t *testing.T) {
		s, _ := newStore(t)
		payload := []byte(`{"type":"FeatureCollection","features":[]}`)

		require.NoError(t, s.Set(ctx, "earthquakes:limit=50&orderby=time", payload, time.Minute))

		got, err := s.Get(ctx, "earthquakes:limit=50&orderby=time")
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("SetReplaces", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Set(ctx, "k", []byte("one"), time.Minute))
		require.NoError(t, s.Set(ctx, "k", []byte("two"), time.Minute))

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "two", string(got))
	})

	t.Run("SetNX", func(t *testing.T) {
		s, _ := newStore(t)

		created, err := s.SetNX(ctx, "rate-limit:10.0.0.1", []byte("1"), time.Minute)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.SetNX(ctx, "rate-limit:10.0.0.1", []byte("9"), time.Minute)
		require.NoError(t, err)
		assert.False(t, created)

		got, err := s.Get(ctx, "rate-limit:10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, "1", string(got))
	})

	t.Run("IncrCreatesAndIncrements", func(t *testing.T) {
		s, _ := newStore(t)

		n, err := s.Incr(ctx, "counter", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.Incr(ctx, "counter", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		got, err := s.Get(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, "2", string(got))
	})

	t.Run("IncrNonInteger", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Set(ctx, "payload", []byte(`{"a":1}`), time.Minute))

		_, err := s.Incr(ctx, "payload", time.Minute)
		assert.ErrorIs(t, err, ErrNotInteger)
	})

	t.Run("IncrConcurrent", func(t *testing.T) {
		s, _ := newStore(t)
		const workers = 20

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Incr(ctx, "concurrent", time.Minute)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := s.Get(ctx, "concurrent")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(workers), string(got))
	})

	t.Run("ExpireMissingIsNoop", func(t *testing.T) {
		s, _ := newStore(t)
		assert.NoError(t, s.Expire(ctx, "missing", time.Minute))
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Ping", func(t *testing.T) {
		s, _ := newStore(t)
		assert.NoError(t, s.Ping(ctx))
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		s, clock := newStore(t)
		if clock == nil {
			t.Skip("backend does not accept an injected clock")
		}

		require.NoError(t, s.Set(ctx, "earthquake:us7000abcd", []byte("{}"), 10*time.Minute))
		clock.Advance(10*time.Minute - time.Second)
		_, err := s.Get(ctx, "earthquake:us7000abcd")
		require.NoError(t, err)

		clock.Advance(time.Second)
		_, err = s.Get(ctx, "earthquake:us7000abcd")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("IncrKeepsExpiry", func(t *testing.T) {
		s, clock := newStore(t)
		if clock == nil {
			t.Skip("backend does not accept an injected clock")
		}

		created, err := s.SetNX(ctx, "rate-limit:a", []byte("1"), time.Minute)
		require.NoError(t, err)
		require.True(t, created)

		clock.Advance(50 * time.Second)
		n, err := s.Incr(ctx, "rate-limit:a", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		// The window is fixed from creation; the increment must not extend it.
		clock.Advance(10 * time.Second)
		_, err = s.Get(ctx, "rate-limit:a")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("IncrAfterExpiryStartsFresh", func(t *testing.T) {
		s, clock := newStore(t)
		if clock == nil {
			t.Skip("backend does not accept an injected clock")
		}

		require.NoError(t, s.Set(ctx, "rate-limit:b", []byte("3"), time.Minute))
		clock.Advance(time.Minute)

		n, err := s.Incr(ctx, "rate-limit:b", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		// The recreated counter carries the ttl from the same call.
		clock.Advance(time.Minute - time.Second)
		got, err := s.Get(ctx, "rate-limit:b")
		require.NoError(t, err)
		assert.Equal(t, "1", string(got))

		clock.Advance(time.Second)
		_, err = s.Get(ctx, "rate-limit:b")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("IncrCreatesWithTTL", func(t *testing.T) {
		s, clock := newStore(t)
		if clock == nil {
			t.Skip("backend does not accept an injected clock")
		}

		n, err := s.Incr(ctx, "rate-limit:d", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		clock.Advance(30 * time.Second)
		n, err = s.Incr(ctx, "rate-limit:d", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		clock.Advance(30 * time.Second)
		_, err = s.Get(ctx, "rate-limit:d")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("IncrWithoutTTLPersists", func(t *testing.T) {
		s, clock := newStore(t)
		if clock == nil {
			t.Skip("backend does not accept an injected clock")
		}

		_, err := s.Incr(ctx, "counter:total", 0)
		require.NoError(t, err)

		clock.Advance(24 * time.Hour)
		got, err := s.Get(ctx, "counter:total")
		require.NoError(t, err)
		assert.Equal(t, "1", string(got))
	})

	t.Run("SetNXOverExpired", func(t *testing.T) {
		s, clock := newStore(t)
		if clock == nil {
			t.Skip("backend does not accept an injected clock")
		}

		require.NoError(t, s.Set(ctx, "rate-limit:c", []byte("3"), time.Minute))
		clock.Advance(time.Minute)

		created, err := s.SetNX(ctx, "rate-limit:c", []byte("1"), time.Minute)
		require.NoError(t, err)
		assert.True(t, created)

		got, err := s.Get(ctx, "rate-limit:c")
		require.NoError(t, err)
		assert.Equal(t, "1", string(got))
	})
}
