package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// lotLocks hands out one mutex per lot. Entries are reference counted and
// removed once nobody holds or waits on them.
type lotLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lotLock
}

type lotLock struct {
	sem  chan struct{}
	refs int
}

func newLotLocks() *lotLocks {
	return &lotLocks{locks: make(map[uuid.UUID]*lotLock)}
}

// acquire blocks until the lot is free or ctx is done
func (l *lotLocks) acquire(ctx context.Context, lotID uuid.UUID) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[lotID]
	if !ok {
		lk = &lotLock{sem: make(chan struct{}, 1)}
		l.locks[lotID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lk.sem
				l.unref(lotID, lk)
			})
		}, nil
	case <-ctx.Done():
		l.unref(lotID, lk)
		return nil, ctx.Err()
	}
}

func (l *lotLocks) unref(lotID uuid.UUID, lk *lotLock) {
	l.mu.Lock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, lotID)
	}
	l.mu.Unlock()
}

// size reports how many lots currently have a lock entry
func (l *lotLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
