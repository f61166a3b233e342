package object

import (
	"io"
	"reflect"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// MetaPool is a side table of metadata attached to a value. Entries are keyed
// by their dynamic Go type, so a value holds at most one entry per type.
// Entries implementing io.Closer are closed when the value is disposed.
type MetaPool struct {
	mu      sync.Mutex
	entries map[reflect.Type]any
	order   []reflect.Type
}

// Store adds or replaces the entry of the value's type.
func (p *MetaPool) Store(value any) {
	if value == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.entries == nil {
		p.entries = map[reflect.Type]any{}
	}
	t := reflect.TypeOf(value)
	if _, ok := p.entries[t]; !ok {
		p.order = append(p.order, t)
	}
	p.entries[t] = value
}

// Lookup returns the entry stored for the given type.
func (p *MetaPool) Lookup(t reflect.Type) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.entries[t]
	return v, ok
}

// Len returns the number of entries.
func (p *MetaPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *MetaPool) close() error {
	p.mu.Lock()
	entries, order := p.entries, p.order
	p.entries, p.order = nil, nil
	p.mu.Unlock()

	var result error
	for _, t := range order {
		if c, ok := entries[t].(io.Closer); ok {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result
}

// GetMeta returns the metadata of type T attached to obj.
func GetMeta[T any](obj Object) (T, bool) {
	var zero T
	v, ok := obj.Meta().Lookup(reflect.TypeOf((*T)(nil)).Elem())
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// HasMeta reports whether obj carries metadata of type T.
func HasMeta[T any](obj Object) bool {
	_, ok := GetMeta[T](obj)
	return ok
}
