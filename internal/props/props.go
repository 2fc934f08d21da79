// Package props holds the ambient key/value context attached to every log
// line. Properties are process-wide for the owning sink, not message-scoped:
// all producers share one map, and a later push under the same name
// overwrites the earlier value.
package props

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Store is a concurrent mapping from property name to a JSON-serialized
// value. Safe for concurrent use: pushes and guard releases take the write
// lock, snapshots take the read lock.
type Store struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{values: make(map[string]json.RawMessage)}
}

// Push serializes value to JSON and inserts it under name, overwriting any
// existing value. A value that cannot be represented as JSON fails
// synchronously — a bad push is a programmer error and is not swallowed.
//
// The returned Guard removes the property when released; hold it for the
// scope the property should cover:
//
//	g, err := store.Push("RequestId", id)
//	if err != nil {
//	    return err
//	}
//	defer g.Release()
func (s *Store) Push(name string, value any) (*Guard, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("props: serialize %q: %w", name, err)
	}

	s.mu.Lock()
	s.values[name] = raw
	s.mu.Unlock()

	return &Guard{name: name, store: s}, nil
}

// Snapshot returns the current contents as a JSON object. The read lock is
// held for the duration of serialization, so the result is consistent
// relative to concurrent pushes and releases.
func (s *Store) Snapshot() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// map[string]json.RawMessage marshals values verbatim; only a key
	// containing invalid UTF-8 could fail, and Go strings from callers are
	// replaced-on-marshal, so this cannot error in practice.
	raw, err := json.Marshal(s.values)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

// Len returns the number of live properties.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Guard removes its property from the store when released. Release is keyed
// by name, not by guard identity: if a later Push overwrote the name, this
// guard's Release still removes the entry, orphaning the later guard. This
// is a known sharp edge of the nested same-name case; see the package tests.
type Guard struct {
	name  string
	store *Store
	once  sync.Once
}

// Release removes the guarded property. Idempotent: only the first call has
// an effect, so a deferred Release after an explicit one cannot remove a
// value re-pushed in between.
func (g *Guard) Release() {
	g.once.Do(func() {
		g.store.mu.Lock()
		delete(g.store.values, g.name)
		g.store.mu.Unlock()
	})
}
