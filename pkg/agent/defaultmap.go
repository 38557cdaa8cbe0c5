package agent

import (
	"sync"

	"golang.org/x/exp/constraints"
)

// DefaultMap is a concurrent map that materializes missing values through
// the init hook. The optional fini hook observes values dropped from the
// map, including the losers of concurrent inserts.
type DefaultMap[K constraints.Ordered, V any] struct {
	init func(K) *V
	fini func(K, *V)

	mu sync.RWMutex
	m  map[K]*V
}

func NewDefaultMap[K constraints.Ordered, V any](
	init func(K) *V,
	fini func(K, *V),
) *DefaultMap[K, V] {
	return &DefaultMap[K, V]{
		init: init,
		fini: fini,
		m:    make(map[K]*V),
	}
}

func (m *DefaultMap[K, V]) Get(key K) *V {
	m.mu.RLock()
	value, ok := m.m[key]
	m.mu.RUnlock()

	if ok {
		return value
	}

	newval := m.init(key)

	m.mu.Lock()
	value, ok = m.m[key]
	if ok {
		m.mu.Unlock()
		if m.fini != nil {
			m.fini(key, newval)
		}
		return value
	}
	m.m[key] = newval
	m.mu.Unlock()

	return newval
}

func (m *DefaultMap[K, V]) Erase(key K) {
	m.mu.Lock()
	value, ok := m.m[key]
	if ok {
		delete(m.m, key)
	}
	m.mu.Unlock()

	if ok && m.fini != nil {
		m.fini(key, value)
	}
}

// Range calls f on a snapshot of the map, so f may touch the map itself.
func (m *DefaultMap[K, V]) Range(f func(K, *V)) {
	m.mu.RLock()
	keys := make([]K, 0, len(m.m))
	values := make([]*V, 0, len(m.m))
	for k, v := range m.m {
		keys = append(keys, k)
		values = append(values, v)
	}
	m.mu.RUnlock()

	for i, k := range keys {
		f(k, values[i])
	}
}

func (m *DefaultMap[K, V]) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}

func (m *DefaultMap[K, V]) Clear() {
	m.mu.Lock()
	tmp := m.m
	m.m = make(map[K]*V)
	m.mu.Unlock()

	if m.fini == nil {
		return
	}
	for k, v := range tmp {
		m.fini(k, v)
	}
}
