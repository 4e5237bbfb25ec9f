package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// LocalLocker is an in-process Locker for single-instance deployments and tests.
// The ttl is ignored: a holder in the same process cannot vanish without running its release.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) sem(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, wait, _ time.Duration) (Lock, error) {
	ch := l.sem(key)

	select {
	case ch <- struct{}{}:
		return &localLock{key: key, ch: ch}, nil
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return &localLock{key: key, ch: ch}, nil
	case <-timer.C:
		return nil, ErrLockNotAcquired
	case <-ctx.Done():
		return nil, errors.Join(ErrLockNotAcquired, ctx.Err())
	}
}

type localLock struct {
	key  string
	ch   chan struct{}
	once sync.Once
}

func (l *localLock) Key() string {
	return l.key
}

func (l *localLock) Release(context.Context) error {
	l.once.Do(func() { <-l.ch })
	return nil
}
