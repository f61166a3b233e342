package object

import (
	"fmt"
	"iter"
	"sync"
)

// Iter is a lazy sequence of values. Attached as metadata to an atomic
// value, it makes foreach walk the sequence instead of the atomic itself.
// The sequence is pulled one value at a time and is released when the
// owning value is disposed.
type Iter struct {
	// description for Inspect/debugging
	desc string
	seq  iter.Seq[Object]

	mu   sync.Mutex
	next func() (Object, bool)
	stop func()
	done bool
}

// NewIter creates a lazy sequence from a generator.
func NewIter(desc string, seq iter.Seq[Object]) *Iter {
	return &Iter{desc: desc, seq: seq}
}

// NewSliceIter creates a sequence over a fixed set of values.
func NewSliceIter(desc string, items []Object) *Iter {
	return NewIter(desc, func(yield func(Object) bool) {
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	})
}

// Next returns the next value of the sequence. The boolean is false once the
// sequence is exhausted or closed.
func (it *Iter) Next() (Object, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.done {
		return nil, false
	}
	if it.next == nil {
		it.next, it.stop = iter.Pull(it.seq)
	}
	v, ok := it.next()
	if !ok {
		it.done = true
	}
	return v, ok
}

// Close stops the underlying generator. It is safe to call more than once.
func (it *Iter) Close() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.done = true
	if it.stop != nil {
		it.stop()
		it.stop = nil
	}
	return nil
}

func (it *Iter) String() string {
	return fmt.Sprintf("iter(%s)", it.desc)
}

// IterValue creates an atomic carrying the sequence as metadata. The atomic
// itself holds the description of the sequence.
func IterValue(it *Iter) *Atomic {
	a := NewString(it.String())
	a.StoreMeta(it)
	return a
}
