package checkin

import (
	"sync"
)

// secretLocks serializes validations per ticket secret so two scans of the
// same ticket cannot race past the multi-entry check. Entries are
// reference-counted and removed on release.
type secretLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSecretLocks() *secretLocks {
	return &secretLocks{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the secret's lock is held and returns the release
// function.
func (t *secretLocks) acquire(secret string) func() {
	t.mu.Lock()
	entry, ok := t.locks[secret]
	if !ok {
		entry = &lockEntry{}
		t.locks[secret] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		t.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(t.locks, secret)
		}
		t.mu.Unlock()
	}
}
