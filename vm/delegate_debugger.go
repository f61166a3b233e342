package vm

import (
	"sync"

	"github.com/hashicorp/go-multierror"
)

// DelegateDebugger forwards every call to a parent debugger. Embed it to
// override part of the protocol.
type DelegateDebugger struct {
	Debugger
}

// NewDelegateDebugger wraps parent.
func NewDelegateDebugger(parent Debugger) *DelegateDebugger {
	return &DelegateDebugger{Debugger: parent}
}

// Parent returns the wrapped debugger.
func (d *DelegateDebugger) Parent() Debugger {
	return d.Debugger
}

// ErrorBlockDebugger is the debugger used for the do block of an error
// handling instruction. It absorbs every error instead of forwarding it to
// the parent: the first error is recorded together with the instruction that
// was executing, later ones are kept as suppressed. Once an error was seen,
// ShouldStop reports true so the do block unwinds.
type ErrorBlockDebugger struct {
	*DelegateDebugger

	mu         sync.Mutex
	err        error
	errored    Instruction
	suppressed *multierror.Error
}

// NewErrorBlockDebugger wraps parent.
func NewErrorBlockDebugger(parent Debugger) *ErrorBlockDebugger {
	return &ErrorBlockDebugger{DelegateDebugger: NewDelegateDebugger(parent)}
}

func (d *ErrorBlockDebugger) Handle(err error) error {
	if err == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		d.suppressed = multierror.Append(d.suppressed, err)
		return nil
	}
	d.err = err
	if stack := d.Parent().StackTrace(); len(stack) > 0 {
		d.errored = stack[len(stack)-1]
	}
	return nil
}

func (d *ErrorBlockDebugger) ShouldStop() bool {
	return d.Parent().ShouldStop() || d.HasError()
}

// HasError reports whether an error was absorbed.
func (d *ErrorBlockDebugger) HasError() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err != nil
}

// Err returns the first absorbed error.
func (d *ErrorBlockDebugger) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// ErroredInstruction returns the instruction that was executing when the
// first error was absorbed, or nil if the parent kept no stack.
func (d *ErrorBlockDebugger) ErroredInstruction() Instruction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errored
}

// Suppressed returns the errors absorbed after the first one.
func (d *ErrorBlockDebugger) Suppressed() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.suppressed == nil {
		return nil
	}
	return d.suppressed.WrappedErrors()
}
