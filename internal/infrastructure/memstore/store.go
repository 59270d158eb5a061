package memstore

import (
	"errors"
	"maps"
	"slices"
	"sync"
)

var ErrInvalidEntity = errors.New("memstore: entity has empty id")

// Entity is anything keyed by a stable string id.
type Entity interface {
	EntityID() string
}

// Entities holding pointers or slices implement Clone so stored values never
// alias caller-owned memory.
type cloner[E any] interface {
	Clone() E
}

func cloneEntity[E Entity](e E) E {
	if c, ok := any(e).(cloner[E]); ok {
		return c.Clone()
	}
	return e
}

type StoreOption func(*storeOptions)

type storeOptions struct {
	serialize bool
}

// WithSerializedTransactions makes transactions on the store run one at a time.
func WithSerializedTransactions(on bool) StoreOption {
	return func(o *storeOptions) { o.serialize = on }
}

// Store is the committed id -> entity mapping. It knows nothing about
// transactions apart from the optional serialization mutex.
type Store[E Entity] struct {
	mu    sync.RWMutex
	items map[string]E

	serialize bool
	txMu      sync.Mutex
}

func NewStore[E Entity](opts ...StoreOption) *Store[E] {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[E]{items: map[string]E{}, serialize: o.serialize}
}

func (s *Store[E]) Serialized() bool { return s.serialize }

// Get reports false when id is absent.
func (s *Store[E]) Get(id string) (E, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		var zero E
		return zero, false
	}
	return cloneEntity(e), true
}

func (s *Store[E]) Put(e E) error {
	id := e.EntityID()
	if id == "" {
		return ErrInvalidEntity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = cloneEntity(e)
	return nil
}

// Delete is a no-op for an absent id.
func (s *Store[E]) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// Snapshot returns a copy of the committed map that shares nothing with the store.
func (s *Store[E]) Snapshot() map[string]E {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]E, len(s.items))
	for id, e := range s.items {
		out[id] = cloneEntity(e)
	}
	return out
}

// ReplaceAll installs m as the committed map in one assignment. The store
// takes ownership of m; the caller must not touch it afterwards.
func (s *Store[E]) ReplaceAll(m map[string]E) {
	if m == nil {
		m = map[string]E{}
	}
	s.mu.Lock()
	s.items = m
	s.mu.Unlock()
}

func (s *Store[E]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// List returns the committed entities ordered by id.
func (s *Store[E]) List() []E {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.items)
}

func (s *Store[E]) lockTx() {
	if s.serialize {
		s.txMu.Lock()
	}
}

func (s *Store[E]) unlockTx() {
	if s.serialize {
		s.txMu.Unlock()
	}
}

func sortedValues[E Entity](m map[string]E) []E {
	out := make([]E, 0, len(m))
	for _, id := range slices.Sorted(maps.Keys(m)) {
		out = append(out, cloneEntity(m[id]))
	}
	return out
}
