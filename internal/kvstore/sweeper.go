package kvstore

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// sweeper periodically deletes expired rows from a SQL-backed store. Reads
// already ignore expired rows; the sweep only bounds table growth.
type sweeper struct {
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func (sw *sweeper) startSweeper(interval time.Duration, purge func(context.Context) (int64, error)) {
	sw.done = make(chan struct{})
	if interval <= 0 {
		return
	}

	sw.wg.Add(1)
	go func() {
		defer sw.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-sw.done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				n, err := purge(ctx)
				cancel()
				if err != nil {
					slog.Warn("Failed to purge expired keys", "error", err)
					continue
				}
				if n > 0 {
					slog.Debug("Purged expired keys", "count", n)
				}
			}
		}
	}()
}

func (sw *sweeper) stopSweeper() {
	sw.stopOnce.Do(func() {
		if sw.done != nil {
			close(sw.done)
		}
	})
	sw.wg.Wait()
}
