package errz

import (
	"fmt"
	"strings"
)

// SourceLocation identifies a line inside a robot.
type SourceLocation struct {
	Robot string // robot identity, usually its path
	Line  int    // 1-based line number
}

// String returns a formatted string representation of the source location.
func (s SourceLocation) String() string {
	if s.Robot != "" {
		return fmt.Sprintf("%s:%d", s.Robot, s.Line)
	}
	return fmt.Sprintf("line %d", s.Line)
}

// IsZero returns true if the location has not been set.
func (s SourceLocation) IsZero() bool {
	return s.Line == 0 && s.Robot == ""
}

// StackFrame represents a single frame in the instruction stack.
type StackFrame struct {
	Function string
	Location SourceLocation
}

// String returns a formatted string representation of the stack frame.
func (f StackFrame) String() string {
	if f.Function != "" {
		return fmt.Sprintf("at %s (%s)", f.Function, f.Location.String())
	}
	return fmt.Sprintf("at %s", f.Location.String())
}

// FormatStackTrace formats a slice of stack frames as a human-readable string.
// Frames are printed innermost first.
func FormatStackTrace(frames []StackFrame) string {
	if len(frames) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Stack trace:\n")
	for i := len(frames) - 1; i >= 0; i-- {
		b.WriteString("  ")
		b.WriteString(frames[i].String())
		b.WriteString("\n")
	}
	return b.String()
}
