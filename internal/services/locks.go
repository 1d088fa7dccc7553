package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"funetec/internal/core"

	"golang.org/x/sync/semaphore"
)

// contractLocks serializes writers of the same contract inside this process.
// Entries are reference counted and removed once nobody holds or waits on
// them.
type contractLocks struct {
	mu    sync.Mutex
	locks map[string]*contractLock
}

type contractLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newContractLocks() *contractLocks {
	return &contractLocks{locks: make(map[string]*contractLock)}
}

// acquire blocks until code is free, ctx is done or timeout elapses. A
// timeout is reported as core.ErrConcurrentModification.
func (l *contractLocks) acquire(ctx context.Context, code string, timeout time.Duration) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[code]
	if !ok {
		lock = &contractLock{sem: semaphore.NewWeighted(1)}
		l.locks[code] = lock
	}
	lock.refs++
	l.mu.Unlock()

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := lock.sem.Acquire(waitCtx, 1); err != nil {
		l.unref(code, lock)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: contract %s is locked by another operation", core.ErrConcurrentModification, code)
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			lock.sem.Release(1)
			l.unref(code, lock)
		})
	}, nil
}

func (l *contractLocks) unref(code string, lock *contractLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, code)
	}
}

func (l *contractLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
