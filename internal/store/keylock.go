package store

import (
	"sync"

	"github.com/amishk599/jobpipe/internal/model"
)

// keyLocks serializes writers per natural key. Entries are reference
// counted and dropped once the last holder unlocks, so the map only holds
// keys with a write in flight.
type keyLocks struct {
	mu    sync.Mutex
	locks map[model.NaturalKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[model.NaturalKey]*keyLock)}
}

// lock blocks until the caller holds key and returns the release func.
func (k *keyLocks) lock(key model.NaturalKey) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
