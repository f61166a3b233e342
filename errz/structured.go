// Package errz defines the error taxonomy of the robot interpreter.
//
// Script-level errors are *StructuredError values. They are catchable by the
// do/success/error/finally construct. A FatalError signals a broken
// instruction tree and is raised with panic, never returned.
package errz

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrorKind represents the category of an error.
type ErrorKind int

const (
	// ErrRuntime indicates a general runtime error raised by a construct or
	// an evaluator instruction.
	ErrRuntime ErrorKind = iota
	// ErrType indicates an operation on a value of the wrong type.
	ErrType
	// ErrValue indicates a value that is out of range for an operation.
	ErrValue
	// ErrName indicates a reference to an unknown variable or construct.
	ErrName
	// ErrConcurrentModification indicates that a collection changed shape
	// while it was being iterated.
	ErrConcurrentModification
	// ErrLoad indicates that an instruction tree document could not be loaded.
	ErrLoad
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrRuntime:
		return "runtime error"
	case ErrType:
		return "type error"
	case ErrValue:
		return "value error"
	case ErrName:
		return "name error"
	case ErrConcurrentModification:
		return "concurrent modification error"
	case ErrLoad:
		return "load error"
	default:
		return "error"
	}
}

// StructuredError is a script-level error with a location and an optional
// instruction stack.
type StructuredError struct {
	Message  string
	Kind     ErrorKind
	Location SourceLocation
	Stack    []StackFrame
	Cause    error
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.Location.IsZero() {
		return fmt.Sprintf("%s: %s", e.Kind.String(), e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind.String(), e.Message, e.Location.String())
}

// Unwrap returns the underlying cause of the error.
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// FriendlyErrorMessage returns the message followed by the stack trace.
func (e *StructuredError) FriendlyErrorMessage() string {
	var msg bytes.Buffer
	msg.WriteString(e.Error())
	msg.WriteString("\n")
	if len(e.Stack) > 0 {
		msg.WriteString("\n")
		msg.WriteString(FormatStackTrace(e.Stack))
	}
	return msg.String()
}

// WithCause wraps the error with a cause.
func (e *StructuredError) WithCause(cause error) *StructuredError {
	e.Cause = cause
	return e
}

// Locate sets the location if none has been recorded yet.
func (e *StructuredError) Locate(loc SourceLocation) *StructuredError {
	if e.Location.IsZero() {
		e.Location = loc
	}
	return e
}

// NewStructuredError creates a new StructuredError with the given parameters.
func NewStructuredError(kind ErrorKind, message string, loc SourceLocation, stack []StackFrame) *StructuredError {
	return &StructuredError{
		Message:  message,
		Kind:     kind,
		Location: loc,
		Stack:    stack,
	}
}

// Errorf creates a StructuredError of the given kind without a location.
func Errorf(kind ErrorKind, format string, args ...any) *StructuredError {
	return &StructuredError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Runtimef creates a runtime error.
func Runtimef(format string, args ...any) *StructuredError {
	return Errorf(ErrRuntime, format, args...)
}

// Typef creates a type error.
func Typef(format string, args ...any) *StructuredError {
	return Errorf(ErrType, format, args...)
}

// Valuef creates a value error.
func Valuef(format string, args ...any) *StructuredError {
	return Errorf(ErrValue, format, args...)
}

// Namef creates a name error.
func Namef(format string, args ...any) *StructuredError {
	return Errorf(ErrName, format, args...)
}

// Loadf creates a load error at the given location.
func Loadf(loc SourceLocation, format string, args ...any) *StructuredError {
	e := Errorf(ErrLoad, format, args...)
	e.Location = loc
	return e
}

// NewConcurrentModificationError re-signals a structural modification that
// happened during iteration.
func NewConcurrentModificationError(cause error) *StructuredError {
	return &StructuredError{
		Kind:    ErrConcurrentModification,
		Message: "the collection was modified while it was being iterated",
		Cause:   cause,
	}
}

// Wrap converts any error into a StructuredError. Errors that already are
// structured are returned unchanged.
func Wrap(err error) *StructuredError {
	if err == nil {
		return nil
	}
	var se *StructuredError
	if errors.As(err, &se) {
		return se
	}
	return &StructuredError{Kind: ErrRuntime, Message: err.Error(), Cause: err}
}

// KindOf returns the kind of the outermost StructuredError in the chain.
func KindOf(err error) (ErrorKind, bool) {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries a StructuredError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		var se *StructuredError
		if !errors.As(err, &se) {
			return false
		}
		if se.Kind == kind {
			return true
		}
		err = se.Cause
	}
	return false
}

// Message returns the human readable message of an error, falling back to a
// generic text when the error carries none.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var se *StructuredError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Unknown internal error"
}
