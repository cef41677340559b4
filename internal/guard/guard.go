// Package guard serialises the conflict check and write for one customer.
package guard

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when a customer lock could not be taken in time.
var ErrBusy = errors.New("customer is locked by another session")

// Locker hands out per-customer locks. The returned release func must be
// called exactly once.
type Locker interface {
	Lock(ctx context.Context, customerID int64) (release func(), err error)
}

// Local is an in-process Locker. A customer's entry lives only while a
// session holds or waits for its lock.
type Local struct {
	mu    sync.Mutex
	locks map[int64]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int // holders and waiters
}

// NewLocal creates an in-process Locker.
func NewLocal() *Local {
	return &Local{locks: make(map[int64]*localLock)}
}

// Lock blocks until the customer is free or ctx ends.
func (l *Local) Lock(ctx context.Context, customerID int64) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[customerID]
	if !ok {
		lk = &localLock{ch: make(chan struct{}, 1)}
		l.locks[customerID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lk.ch
				l.unref(customerID, lk)
			})
		}, nil
	case <-ctx.Done():
		l.unref(customerID, lk)
		return nil, errors.Join(ErrBusy, ctx.Err())
	}
}

func (l *Local) unref(customerID int64, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, customerID)
	}
}

// Nop never blocks.
type Nop struct{}

// Lock returns immediately.
func (Nop) Lock(context.Context, int64) (func(), error) {
	return func() {}, nil
}
