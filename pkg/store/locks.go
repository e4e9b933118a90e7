package store

import (
	"sync"
)

// lockEntry lives in the table only while held or awaited; refs counts
// the holders plus waiters so the entry can be evicted at zero.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

var (
	locksMu    sync.Mutex
	namedLocks = make(map[string]*lockEntry)
)

func acquire(name string) *lockEntry {
	locksMu.Lock()
	e, ok := namedLocks[name]
	if !ok {
		e = &lockEntry{}
		namedLocks[name] = e
	}
	e.refs++
	locksMu.Unlock()
	e.mu.Lock()
	return e
}

func release(name string, e *lockEntry) {
	e.mu.Unlock()
	locksMu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(namedLocks, name)
	}
	locksMu.Unlock()
}

// lockTableSize reports how many names currently hold a table entry.
func lockTableSize() int {
	locksMu.Lock()
	defer locksMu.Unlock()
	return len(namedLocks)
}

// WithLock runs fn while holding the named lock. Read-modify-write
// sequences (member counts, delivery CAS, session sets) go through
// here so concurrent writers never interleave on one aggregate. Names
// follow the key-prefix convention ("r:<id>", "p:<user>",
// "dl:<msg>:<user>") so each aggregate serializes independently, and
// entries leave the table as soon as the last holder is done.
func WithLock(name string, fn func() error) error {
	e := acquire(name)
	defer release(name, e)
	return fn()
}
