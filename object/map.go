package object

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Map is an insertion-ordered, mutable mapping from strings to values. It
// holds one reference to each of its values.
type Map struct {
	lifecycle
	mu     sync.RWMutex
	keys   []string
	values map[string]Object
	mods   atomic.Uint64
}

// NewMap creates an empty map.
func NewMap() *Map {
	m := &Map{values: map[string]Object{}}
	m.contents = m.Values
	m.drop = func() {
		m.mu.Lock()
		m.keys, m.values = nil, map[string]Object{}
		m.mu.Unlock()
	}
	return m
}

// NewMapFrom creates a map holding the given entries, in the order of keys.
func NewMapFrom(keys []string, values map[string]Object) *Map {
	m := NewMap()
	for _, k := range keys {
		if v, ok := values[k]; ok {
			m.Put(k, v)
		}
	}
	return m
}

func (m *Map) Type() Type {
	return OBJECT
}

// Len returns the number of entries.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// ModCount returns a counter that changes whenever the key set changes.
func (m *Map) ModCount() uint64 {
	return m.mods.Load()
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Values returns the values in key insertion order.
func (m *Map) Values() []Object {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Object, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.values[k])
	}
	return out
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether the key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Put stores value under key and registers a reference to it. If the key was
// already present, the map's reference to the previous value is handed to the
// caller, who must release it.
func (m *Map) Put(key string, value Object) (Object, bool) {
	value.RegisterReference()
	m.mu.Lock()
	prev, existed := m.values[key]
	if !existed {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	m.mu.Unlock()
	if !existed {
		m.mods.Add(1)
	}
	return prev, existed
}

// Delete removes key and hands the map's reference to its value to the caller.
func (m *Map) Delete(key string) (Object, bool) {
	m.mu.Lock()
	prev, ok := m.values[key]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	m.mods.Add(1)
	return prev, true
}

func (m *Map) IsTruthy() bool {
	return m.Len() > 0
}

func (m *Map) Equals(other Object) bool {
	if Object(m) == other {
		return true
	}
	o, ok := other.(*Map)
	if !ok || m.Len() != o.Len() {
		return false
	}
	for _, k := range m.Keys() {
		a, _ := m.Get(k)
		b, ok := o.Get(k)
		if !ok || !a.Equals(b) {
			return false
		}
	}
	return true
}

func (m *Map) Interface() any {
	v, _ := plain(m, map[Object]bool{}, false)
	return v
}

func (m *Map) String() string {
	return stringify(m)
}

func (m *Map) Inspect() string {
	keys := m.Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, _ := m.Get(k)
		s := "{...}"
		if Object(m) != v {
			s = v.Inspect()
		}
		parts = append(parts, strconv.Quote(k)+": "+s)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (m *Map) MarshalJSON() ([]byte, error) {
	return marshal(m)
}
