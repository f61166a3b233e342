package debug

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/deepnoodle-ai/robot/vm"
)

// StoppableDebugger runs sub-robots. It keeps its own instruction stack, so
// the variable slots of a sub-robot are indexed independently from its
// caller, and it can be stopped but not paused.
type StoppableDebugger struct {
	*vm.NullDebugger

	parent vm.Debugger

	mu       sync.Mutex
	stack    []vm.Instruction
	policy   vm.ErrorHandlingPolicy
	output   vm.OutputHandler
	children []*StoppableDebugger

	stopped       atomic.Bool
	stopOnError   atomic.Bool
	errorOccurred atomic.Bool
}

// NewStoppableDebugger creates a debugger for a run started under parent.
// parent may be nil.
func NewStoppableDebugger(parent vm.Debugger) *StoppableDebugger {
	return &StoppableDebugger{NullDebugger: vm.NewNullDebugger(), parent: parent}
}

// Parent returns the debugger that created this one.
func (d *StoppableDebugger) Parent() vm.Debugger {
	return d.parent
}

func (d *StoppableDebugger) StartInstruction(instr vm.Instruction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stack = append(d.stack, instr)
}

func (d *StoppableDebugger) EndInstruction(instr vm.Instruction, result vm.Flow) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := len(d.stack); n > 0 {
		d.stack[n-1] = nil
		d.stack = d.stack[:n-1]
	}
}

func (d *StoppableDebugger) StackTrace() []vm.Instruction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.stack)
}

// StackDepth is zero both for the first instruction and for library
// initializers, which run outside any instruction.
func (d *StoppableDebugger) StackDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return max(len(d.stack)-1, 0)
}

func (d *StoppableDebugger) Stop() {
	d.stopped.Store(true)
	d.mu.Lock()
	children := slices.Clone(d.children)
	d.mu.Unlock()
	for _, child := range children {
		child.Stop()
	}
}

func (d *StoppableDebugger) ShouldStop() bool {
	return d.stopped.Load()
}

// SetStopOnError makes the first handled error stop the run.
func (d *StoppableDebugger) SetStopOnError(stop bool) {
	d.stopOnError.Store(stop)
}

// ErrorOccurred reports whether an error was handled.
func (d *StoppableDebugger) ErrorOccurred() bool {
	return d.errorOccurred.Load()
}

func (d *StoppableDebugger) Handle(err error) error {
	if err == nil {
		return nil
	}
	d.errorOccurred.Store(true)
	if d.stopOnError.Load() {
		d.stopped.Store(true)
	}
	d.mu.Lock()
	policy, out := d.policy, d.output
	var at vm.Instruction
	if n := len(d.stack); n > 0 {
		at = d.stack[n-1]
	}
	d.mu.Unlock()
	return vm.HandleError(out, policy, at, err)
}

func (d *StoppableDebugger) SetErrorHandler(policy vm.ErrorHandlingPolicy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.policy = policy
}

func (d *StoppableDebugger) SetOutputHandler(out vm.OutputHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.output = out
}

// CreateChild returns a debugger for a robot called from this one. It is
// stopped together with this debugger.
func (d *StoppableDebugger) CreateChild() vm.Debugger {
	child := NewStoppableDebugger(d)
	d.mu.Lock()
	child.output = d.output
	d.children = append(d.children, child)
	d.mu.Unlock()
	if d.ShouldStop() {
		child.Stop()
	}
	return child
}

func (d *StoppableDebugger) RemoveChild(child vm.Debugger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.children = slices.DeleteFunc(d.children, func(c *StoppableDebugger) bool {
		return vm.Debugger(c) == child
	})
}
