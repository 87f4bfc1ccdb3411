package reservation

import (
	"context"
	"sync"
	"time"
)

// dateLocks serializes booking attempts per calendar date. Coarse per-date
// locking is enough at expected booking volume; attempts for different dates
// proceed concurrently.
type dateLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newDateLocks() *dateLocks {
	return &dateLocks{locks: make(map[string]chan struct{})}
}

// acquire takes the exclusive section for a date key, waiting at most timeout.
// The returned release func must be called exactly once.
func (l *dateLocks) acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
