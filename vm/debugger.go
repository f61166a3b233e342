package vm

import (
	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
	"github.com/rs/zerolog"
)

// Debugger observes and steers the evaluation of instruction trees. Every
// block reports to it before and after each instruction, polls its stop flag,
// and passes it the errors raised by instructions.
//
// Controller methods (Pause, Resume, Stop, StepIn, StepOver and breakpoint
// management) may be called from another goroutine than the one executing
// the robot. All other methods are called by the executing goroutine.
type Debugger interface {
	// Pause suspends execution before the next debuggable instruction.
	Pause(userAction bool)
	// Resume continues a paused execution.
	Resume()
	// Stop requests cooperative cancellation of the run.
	Stop()
	// StepIn pauses at the very next debuggable instruction.
	StepIn()
	// StepOver pauses at the next debuggable instruction at the same or a
	// shallower depth.
	StepOver()
	AddBreakpoint(bp Breakpoint)
	SetBreakpoints(bps []Breakpoint)

	StartInstruction(instr Instruction)
	EndInstruction(instr Instruction, result Flow)
	Returning(block *InstructionSet, result Flow)
	RobotStarted(robot *Robot)
	RobotFinished(robot *Robot)
	StartFunction(fn *FunctionDeclaration)
	EndFunction(fn *FunctionDeclaration)

	// ShouldStop reports whether execution must unwind.
	ShouldStop() bool

	// Handle receives an error raised by an instruction. It returns the error
	// to propagate, or nil if the error was absorbed.
	Handle(err error) error
	SetErrorHandler(policy ErrorHandlingPolicy)
	SetOutputHandler(out OutputHandler)

	// StackTrace returns the active instructions, outermost first.
	StackTrace() []Instruction
	// StackDepth returns the depth used to index variable slots.
	StackDepth() int

	// CreateChild returns a debugger for a nested robot run.
	CreateChild() Debugger
	RemoveChild(child Debugger)

	// Variables returns the declarations visible from instr.
	Variables(instr Instruction) ([]*VariableDeclaration, error)
	// VariableValue returns the value of decl at the given stack position.
	VariableValue(decl *VariableDeclaration, stackPosition int) object.Object
	AddDebugInfo(info *DebugInfo)
}

// ErrorHandlingPolicy decides what happens to an error passed to a debugger.
type ErrorHandlingPolicy interface {
	// Handle returns the error to propagate, or nil to absorb it.
	Handle(err error) error
}

// ErrorHandlingFunc adapts a function to ErrorHandlingPolicy.
type ErrorHandlingFunc func(err error) error

func (f ErrorHandlingFunc) Handle(err error) error {
	return f(err)
}

// OutputHandler receives the diagnostics of a run.
type OutputHandler interface {
	HandleLog(robot RobotID, level zerolog.Level, msg string, args ...any)
	// Inspect reports an error raised at instr. instr may be nil.
	Inspect(instr Instruction, err error)
}

// Breakpoint pauses execution at a line of a robot.
type Breakpoint struct {
	Robot RobotID
	Line  int
}

// Matches reports whether the breakpoint targets the instruction.
func (b Breakpoint) Matches(instr Instruction) bool {
	if instr == nil {
		return false
	}
	pos := instr.Position()
	return pos.Line == b.Line && pos.Robot == b.Robot
}

// HandleError notifies the output handler, then lets the policy decide. Without
// a policy the error is propagated as a script error.
func HandleError(out OutputHandler, policy ErrorHandlingPolicy, at Instruction, err error) error {
	if err == nil {
		return nil
	}
	if out != nil {
		out.Inspect(at, err)
	}
	if policy != nil {
		return policy.Handle(err)
	}
	return errz.Wrap(err)
}
