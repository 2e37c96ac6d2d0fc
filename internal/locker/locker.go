// Package locker serializes write access per company. Two concurrent
// rule-confirmation batches for the same empresa must not interleave their
// upserts; batches for different empresas stay fully independent.
package locker

import "sync"

type Locker struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New() *Locker {
	return &Locker{
		locks: make(map[int64]*sync.Mutex),
	}
}

// Lock blocks until the company lock is held. Unlock with the returned
// function.
func (l *Locker) Lock(companyID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[companyID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[companyID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// TryLock reports whether the company lock could be taken without blocking.
func (l *Locker) TryLock(companyID int64) (func(), bool) {
	l.mu.Lock()
	m, ok := l.locks[companyID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[companyID] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return nil, false
	}
	return m.Unlock, true
}
