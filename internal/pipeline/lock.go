package pipeline

import (
	"context"
	"sync"
)

// Locker guards a run against overlapping runs. TryLock never blocks; ok is
// false when someone else holds the lock.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// MutexLock is a process-local Locker.
type MutexLock struct {
	mu sync.Mutex
}

// TryLock implements Locker.
func (l *MutexLock) TryLock(context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}

var _ Locker = (*MutexLock)(nil)
