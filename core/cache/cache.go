package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timezone-scheduler/core/logger"
)

// ErrLockNotAcquired is returned when a named lock stays busy for the whole wait.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Lock is a held named mutex.
type Lock interface {
	Key() string
	Release(ctx context.Context) error
}

// Locker hands out named mutexes with a bounded wait.
type Locker interface {
	Acquire(ctx context.Context, key string, wait, ttl time.Duration) (Lock, error)
}

// WithLock runs fn while holding key. The lock is released on every exit path,
// including a panic inside fn.
func WithLock(ctx context.Context, locker Locker, key string, wait, ttl time.Duration, fn func() error) (err error) {
	lock, err := locker.Acquire(ctx, key, wait, ttl)
	if err != nil {
		return err
	}
	defer func() {
		// Release with a fresh context: the request context may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if relErr := lock.Release(releaseCtx); relErr != nil {
			logger.Error("Cache:WithLock:Release", "key", key, "error", relErr)
			if err == nil {
				err = fmt.Errorf("release lock %s: %w", key, relErr)
			}
		}
	}()
	return fn()
}
