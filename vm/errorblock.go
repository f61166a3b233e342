package vm

import (
	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
)

// ErrorInstruction is the do/success/error/finally construct. The do block
// runs under an ErrorBlockDebugger that absorbs the first error. The other
// blocks run under the enclosing debugger, so errors raised there propagate.
type ErrorInstruction struct {
	base
	do      *InstructionSet
	success *InstructionSet
	onError *InstructionSet
	finally *InstructionSet
	cause   *VariableDeclaration
}

// NewErrorInstruction creates the construct. Every block except do may be
// nil, and so may cause.
func NewErrorInstruction(do, success, onError, finally *InstructionSet, cause *VariableDeclaration) *ErrorInstruction {
	e := &ErrorInstruction{do: do, success: success, onError: onError, finally: finally, cause: cause}
	for _, block := range []*InstructionSet{do, success, onError, finally} {
		if block != nil {
			block.SetParent(e)
		}
	}
	if cause != nil && onError != nil {
		cause.SetHost(onError)
	}
	return e
}

func (e *ErrorInstruction) Process(dbg Debugger) (Flow, error) {
	return e.ProcessWith(dbg, NewErrorBlockDebugger(dbg))
}

// ProcessWith runs the construct with a given error block debugger.
func (e *ErrorInstruction) ProcessWith(dbg Debugger, child *ErrorBlockDebugger) (Flow, error) {
	result, err := e.do.Process(child)
	if err != nil {
		_ = child.Handle(unwrapPropagated(err))
		result = Resume()
	}
	if result.HasValue() {
		result.Value.PreventDisposal()
		defer result.Value.AllowDisposal()
	}

	// Flows of the success, error and finally blocks are dropped: only the
	// do result leaves the construct.
	caught := child.HasError()
	if caught {
		err = e.processError(dbg, child)
	} else if e.success != nil {
		_, err = e.success.Process(dbg)
	}

	// finally also runs when the success or error block raised.
	if e.finally != nil {
		if _, ferr := e.finally.Process(dbg); ferr != nil {
			return Flow{}, ferr
		}
	}
	if err != nil {
		return Flow{}, err
	}

	if dbg.ShouldStop() {
		return Return(object.Null), nil
	}
	if caught {
		return Resume(), nil
	}
	return result, nil
}

func (e *ErrorInstruction) processError(dbg Debugger, child *ErrorBlockDebugger) error {
	if e.onError == nil {
		return nil
	}
	if e.cause == nil {
		_, err := e.onError.Process(dbg)
		return err
	}
	e.cause.Push(causeValue(child), child.StackDepth())
	defer e.cause.Release()
	_, err := e.onError.Process(dbg)
	return err
}

// causeValue describes an absorbed error as an object with the message and,
// when known, the line and robot of the failing instruction.
func causeValue(child *ErrorBlockDebugger) *object.Map {
	cause := object.NewMap()
	cause.Put("message", object.NewString(errz.Message(child.Err())))
	if instr := child.ErroredInstruction(); instr != nil {
		cause.Put("line", object.NewInt(int64(instr.Position().Line)))
		cause.Put("robot", object.NewString(instr.Position().Robot.String()))
		return cause
	}
	if se := errz.Wrap(child.Err()); se != nil && !se.Location.IsZero() {
		cause.Put("line", object.NewInt(int64(se.Location.Line)))
		cause.Put("robot", object.NewString(se.Location.Robot))
	}
	return cause
}
