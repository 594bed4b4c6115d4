package service

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/menu-orders/internal/core/domain"
	"github.com/rl1809/menu-orders/internal/port"
)

// DefaultLockWait bounds how long Lock waits for a held order.
const DefaultLockWait = 3 * time.Second

// LocalLocker serializes work per order inside one process. Entries are
// dropped once nobody holds or waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	wait  time.Duration
	locks map[int64]*localLock
}

type localLock struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	if wait <= 0 {
		wait = DefaultLockWait
	}
	return &LocalLocker{wait: wait, locks: make(map[int64]*localLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, orderID int64) (port.ReleaseFunc, error) {
	l.mu.Lock()
	entry, ok := l.locks[orderID]
	if !ok {
		entry = &localLock{sem: make(chan struct{}, 1)}
		l.locks[orderID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	select {
	case entry.sem <- struct{}{}:
	case <-waitCtx.Done():
		l.drop(orderID, entry)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, domain.ErrOrderLocked
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-entry.sem
			l.drop(orderID, entry)
		})
		return nil
	}, nil
}

func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *LocalLocker) drop(orderID int64, entry *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, orderID)
	}
}
