// Package object implements the value model of the robot interpreter.
//
// Every value is one of three kinds: an atomic scalar, a list, or an object
// (an insertion-ordered string-keyed map). Values are reference counted by
// hand. A holder calls RegisterReference when it starts keeping a value and
// ReleaseReference when it lets go; the value is disposed when the last
// holder releases it.
//
// Callers usually switch on the concrete type:
//
//	switch obj := obj.(type) {
//	case *object.Atomic:
//		// obj.Number(), obj.Str(), ...
//	case *object.List:
//		// obj.Items()
//	case *object.Map:
//		// obj.Keys(), obj.Get(key)
//	}
package object

import "errors"

// Type of an object as a string.
type Type string

// Type constants
const (
	ATOMIC Type = "ATOMIC"
	LIST   Type = "LIST"
	OBJECT Type = "OBJECT"
)

// Object is the interface implemented by every runtime value. The set of
// implementations is closed: *Atomic, *List and *Map.
type Object interface {
	// Type of the object.
	Type() Type

	// Inspect returns a string representation of the given object.
	Inspect() string

	// String returns the string coercion of the object.
	String() string

	// Interface converts the given object to a native Go value.
	Interface() any

	// Returns true if the given object is equal to this object.
	Equals(other Object) bool

	// IsTruthy returns true if the object is considered "truthy".
	IsTruthy() bool

	// MarshalJSON encodes the value as JSON.
	MarshalJSON() ([]byte, error)

	// RegisterReference records one more holder of this value.
	RegisterReference()

	// ReleaseReference records that a holder let go of this value. The value
	// is disposed when no holders remain and disposal is not prevented.
	ReleaseReference()

	// PreventDisposal guards the value and its children against disposal.
	PreventDisposal()

	// AllowDisposal lifts the guard set by PreventDisposal.
	AllowDisposal()

	// IsDisposalPrevented reports whether the disposal guard is set.
	IsDisposalPrevented() bool

	// RefCount returns the current number of registered holders.
	RefCount() int

	// IsClosed reports whether the value has been disposed.
	IsClosed() bool

	// Close disposes the value. Calling it more than once is harmless.
	Close() error

	// StoreMeta attaches a metadata value, replacing any metadata of the
	// same Go type.
	StoreMeta(value any)

	// Meta returns the metadata pool of the value.
	Meta() *MetaPool

	life() *lifecycle
}

// Container is implemented by the collection kinds.
type Container interface {
	Object

	// Len returns the number of items in this container.
	Len() int

	// ModCount returns a counter that changes on every structural change.
	ModCount() uint64
}

// ErrConcurrentModification reports that a container changed shape while it
// was being iterated.
var ErrConcurrentModification = errors.New("collection modified during iteration")
