// Package resource implements a keyed, reference-counted store of large
// immutable assets (sample files, instruments) shared across channels, with
// user-defined create/destroy callbacks invoked only by non-real-time
// threads (spec.md §4.3). It is never accessed from the audio thread.
//
// Grounded on original_source/src/engines/gig/InstrumentResourceManager.cpp's
// borrow/hand-back/update/on-borrow contract.
package resource

import "sync"

// Callbacks bundles the user-defined lifecycle hooks for one Manager.
type Callbacks[K comparable, V any] struct {
	// Create builds a new V for key the first time it's borrowed.
	Create func(key K) (V, error)
	// Destroy releases a V whose refcount has reached zero.
	Destroy func(key K, value V)
	// OnBorrow, if set, is called on every successful borrow after the
	// first for that key, so a consumer can re-check per-consumer
	// compatibility (e.g. request a larger cache).
	OnBorrow func(key K, value V, consumer any)
}

type entry[K comparable, V any] struct {
	value    V
	refcount int
	custom   any
}

// Manager is a keyed, reference-counted store of type V under keys of type
// K. All methods must be called from a single non-real-time goroutine (or
// externally serialized); Manager does no locking of its own beyond what's
// needed to make that contract safe to violate accidentally in tests.
type Manager[K comparable, V any] struct {
	mu       sync.Mutex
	cb       Callbacks[K, V]
	entries  map[K]*entry[K, V]
}

// New creates a Manager with the given lifecycle callbacks.
func New[K comparable, V any](cb Callbacks[K, V]) *Manager[K, V] {
	return &Manager[K, V]{cb: cb, entries: make(map[K]*entry[K, V])}
}

// Borrow returns the resource for key, creating it via Callbacks.Create on
// first access. Every successful borrow after the first calls OnBorrow so
// the consumer can request an upgrade (e.g. a bigger cache).
func (m *Manager[K, V]) Borrow(key K, consumer any) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		v, err := m.cb.Create(key)
		if err != nil {
			var zero V
			return zero, err
		}
		e = &entry[K, V]{value: v, refcount: 0}
		m.entries[key] = e
	} else if m.cb.OnBorrow != nil {
		m.cb.OnBorrow(key, e.value, consumer)
	}
	e.refcount++
	return e.value, nil
}

// HandBack decrements key's refcount; when it reaches zero, Destroy is
// invoked and the entry is removed.
func (m *Manager[K, V]) HandBack(key K, consumer any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return
	}
	e.refcount--
	if e.refcount <= 0 {
		delete(m.entries, key)
		if m.cb.Destroy != nil {
			m.cb.Destroy(key, e.value)
		}
	}
}

// Update replaces the cached resource for key with a freshly created one
// via Callbacks.Create, without touching the refcount. Existing borrowers
// still hold their old reference until they next call Borrow or OnBorrow
// notifies them to rebind.
func (m *Manager[K, V]) Update(key K) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, err := m.cb.Create(key)
	if err != nil {
		var zero V
		return zero, err
	}
	e, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, err
	}
	old := e.value
	e.value = v
	if m.cb.Destroy != nil {
		m.cb.Destroy(key, old)
	}
	return v, nil
}

// SetCustomData attaches opaque per-key data (e.g. a volume override),
// replacing the original's "manual custom-data pointers on resources" with
// a typed side table.
func (m *Manager[K, V]) SetCustomData(key K, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		e.custom = data
	}
}

// CustomData returns the opaque data previously attached via SetCustomData,
// or nil if none was set (or the key is not currently cached).
func (m *Manager[K, V]) CustomData(key K) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e.custom
	}
	return nil
}

// RefCount returns key's current refcount (0 if not cached), for tests and
// diagnostics.
func (m *Manager[K, V]) RefCount(key K) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e.refcount
	}
	return 0
}
