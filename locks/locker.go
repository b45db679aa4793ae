// Package locks provides the bounded-wait mutual exclusion used around
// check-then-write critical sections.
package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultTimeout is how long Acquire waits before giving up.
const DefaultTimeout = 3 * time.Second

var ErrTimeout = errors.New("lock wait timed out")

// Locker hands out exclusive leases keyed by resource name. The returned
// release func must be called exactly once on every exit path.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// RoundKey is the lock key shared by every critical section touching a round.
func RoundKey(round int) string {
	return fmt.Sprintf("round:%d", round)
}

// LocalLocker serializes callers inside one process.
type LocalLocker struct {
	timeout time.Duration

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func NewLocalLocker(timeout time.Duration) *LocalLocker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LocalLocker{
		timeout: timeout,
		sems:    make(map[string]*semaphore.Weighted),
	}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	sem := l.semaphore(key)

	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := sem.Acquire(waitCtx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %v", ErrTimeout, key, l.timeout)
		}
		return nil, err
	}

	var once sync.Once
	return func() { once.Do(func() { sem.Release(1) }) }, nil
}

func (l *LocalLocker) semaphore(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[key] = sem
	}
	return sem
}
