package vm

import "github.com/deepnoodle-ai/robot/object"

// NullDebugger runs robots without any instrumentation. It never stops,
// keeps no stack and rethrows every error after reporting it.
type NullDebugger struct {
	output OutputHandler
}

// NewNullDebugger returns a debugger that does nothing.
func NewNullDebugger() *NullDebugger {
	return &NullDebugger{}
}

func (d *NullDebugger) Pause(userAction bool)                         {}
func (d *NullDebugger) Resume()                                       {}
func (d *NullDebugger) Stop()                                         {}
func (d *NullDebugger) StepIn()                                       {}
func (d *NullDebugger) StepOver()                                     {}
func (d *NullDebugger) AddBreakpoint(bp Breakpoint)                   {}
func (d *NullDebugger) SetBreakpoints(bps []Breakpoint)               {}
func (d *NullDebugger) StartInstruction(instr Instruction)            {}
func (d *NullDebugger) EndInstruction(instr Instruction, result Flow) {}
func (d *NullDebugger) Returning(block *InstructionSet, result Flow)  {}
func (d *NullDebugger) RobotStarted(robot *Robot)                     {}
func (d *NullDebugger) RobotFinished(robot *Robot)                    {}
func (d *NullDebugger) StartFunction(fn *FunctionDeclaration)         {}
func (d *NullDebugger) EndFunction(fn *FunctionDeclaration)           {}
func (d *NullDebugger) SetErrorHandler(policy ErrorHandlingPolicy)    {}
func (d *NullDebugger) RemoveChild(child Debugger)                    {}
func (d *NullDebugger) AddDebugInfo(info *DebugInfo)                  {}

func (d *NullDebugger) ShouldStop() bool {
	return false
}

func (d *NullDebugger) Handle(err error) error {
	return HandleError(d.output, nil, nil, err)
}

func (d *NullDebugger) SetOutputHandler(out OutputHandler) {
	d.output = out
}

func (d *NullDebugger) StackTrace() []Instruction {
	return nil
}

func (d *NullDebugger) StackDepth() int {
	return 0
}

func (d *NullDebugger) CreateChild() Debugger {
	return d
}

func (d *NullDebugger) Variables(instr Instruction) ([]*VariableDeclaration, error) {
	return nil, nil
}

func (d *NullDebugger) VariableValue(decl *VariableDeclaration, stackPosition int) object.Object {
	return object.Null
}
