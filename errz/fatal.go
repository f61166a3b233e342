package errz

import "fmt"

// FatalError reports a violated interpreter invariant, such as attaching an
// instruction to two hosts. It indicates a bug in tree construction rather
// than in script content and is raised with panic.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Message
}

// IsFatal always returns true.
func (e *FatalError) IsFatal() bool {
	return true
}

// Fatalf creates a FatalError with a formatted message.
func Fatalf(format string, args ...any) *FatalError {
	return &FatalError{Message: fmt.Sprintf(format, args...)}
}
