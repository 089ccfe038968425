package rankup

import (
	"sync"

	"github.com/google/uuid"
)

// keyedLocks hands out one mutex per player and frees it when unused.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[uuid.UUID]*refLock)}
}

// lock blocks until uid is free and returns the matching unlock.
func (k *keyedLocks) lock(uid uuid.UUID) func() {
	k.mu.Lock()
	l, ok := k.locks[uid]
	if !ok {
		l = &refLock{}
		k.locks[uid] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, uid)
		}
		k.mu.Unlock()
	}
}

func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
