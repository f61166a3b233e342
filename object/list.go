package object

import (
	"strings"
	"sync"
	"sync/atomic"
)

// List is an ordered, mutable sequence of values. It holds one reference to
// each of its items.
type List struct {
	lifecycle
	mu    sync.RWMutex
	items []Object
	mods  atomic.Uint64
}

// NewList creates a list holding the given items. A reference is registered
// for each item.
func NewList(items ...Object) *List {
	ls := &List{items: make([]Object, 0, len(items))}
	ls.contents = ls.Items
	ls.drop = func() {
		ls.mu.Lock()
		ls.items = nil
		ls.mu.Unlock()
	}
	for _, item := range items {
		item.RegisterReference()
		ls.items = append(ls.items, item)
	}
	return ls
}

func (ls *List) Type() Type {
	return LIST
}

// Len returns the number of items.
func (ls *List) Len() int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return len(ls.items)
}

// ModCount returns a counter that changes whenever the length changes.
func (ls *List) ModCount() uint64 {
	return ls.mods.Load()
}

// Items returns a snapshot of the items.
func (ls *List) Items() []Object {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	out := make([]Object, len(ls.items))
	copy(out, ls.items)
	return out
}

// Get returns the item at the given index.
func (ls *List) Get(index int) (Object, bool) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	if index < 0 || index >= len(ls.items) {
		return nil, false
	}
	return ls.items[index], true
}

// Append adds an item to the end of the list and registers a reference to it.
func (ls *List) Append(item Object) {
	item.RegisterReference()
	ls.mu.Lock()
	ls.items = append(ls.items, item)
	ls.mu.Unlock()
	ls.mods.Add(1)
}

// Set replaces the item at the given index and registers a reference to the
// new item. The list's reference to the previous item is handed to the
// caller, who must release it. Set reports false if the index is out of range.
func (ls *List) Set(index int, item Object) (Object, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if index < 0 || index >= len(ls.items) {
		return nil, false
	}
	item.RegisterReference()
	prev := ls.items[index]
	ls.items[index] = item
	return prev, true
}

// Remove deletes the item at the given index and hands the list's reference
// to the caller.
func (ls *List) Remove(index int) (Object, bool) {
	ls.mu.Lock()
	if index < 0 || index >= len(ls.items) {
		ls.mu.Unlock()
		return nil, false
	}
	prev := ls.items[index]
	ls.items = append(ls.items[:index], ls.items[index+1:]...)
	ls.mu.Unlock()
	ls.mods.Add(1)
	return prev, true
}

func (ls *List) IsTruthy() bool {
	return ls.Len() > 0
}

func (ls *List) Equals(other Object) bool {
	if Object(ls) == other {
		return true
	}
	o, ok := other.(*List)
	if !ok {
		return false
	}
	a, b := ls.Items(), o.Items()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}

func (ls *List) Interface() any {
	v, _ := plain(ls, map[Object]bool{}, false)
	return v
}

func (ls *List) String() string {
	return stringify(ls)
}

func (ls *List) Inspect() string {
	items := ls.Items()
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if Object(ls) == item {
			parts = append(parts, "[...]")
			continue
		}
		parts = append(parts, item.Inspect())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (ls *List) MarshalJSON() ([]byte, error) {
	return marshal(ls)
}
