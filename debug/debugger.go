// Package debug provides the interactive debugger for robot runs and the
// debuggers used for sub-robots.
package debug

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
	"github.com/deepnoodle-ai/robot/vm"
	"github.com/rs/zerolog/log"
)

// Mode is the execution state of a RobotDebugger.
type Mode uint8

const (
	// ModeRunning executes until a breakpoint or a pause request.
	ModeRunning Mode = iota
	// ModeStepIn pauses at the next debuggable instruction.
	ModeStepIn
	// ModeStepOver pauses at the next debuggable instruction that is not
	// nested deeper than the one execution was paused on.
	ModeStepOver
	// ModePaused blocks the executing goroutine.
	ModePaused
	// ModeStopped unwinds the run. It is final until Reset.
	ModeStopped
)

func (m Mode) String() string {
	switch m {
	case ModeRunning:
		return "running"
	case ModeStepIn:
		return "step-in"
	case ModeStepOver:
		return "step-over"
	case ModePaused:
		return "paused"
	case ModeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrNotPaused is returned when variables are requested from a running robot.
var ErrNotPaused = errors.New("cannot get variables if not paused")

type functionFrame struct {
	fn        *vm.FunctionDeclaration
	stackSize int
}

// RobotDebugger is the debugger of a top level run. One goroutine executes
// the robot and reports to it; any other goroutine may control it through
// Pause, Resume, StepIn, StepOver, Stop and the breakpoint methods.
type RobotDebugger struct {
	// mu guards the mode. cond is signalled whenever the mode changes so a
	// paused executor can re-check it.
	mu        sync.Mutex
	cond      *sync.Cond
	mode      Mode
	stepDepth int
	pausedOn  vm.Instruction
	stopped   atomic.Bool

	bpMu        sync.RWMutex
	breakpoints []vm.Breakpoint

	stackMu   sync.RWMutex
	stack     []vm.Instruction
	functions []functionFrame

	cfgMu     sync.Mutex
	children  []vm.Debugger
	listeners []Listener
	policy    vm.ErrorHandlingPolicy
	output    vm.OutputHandler
	info      *vm.DebugInfo
}

// New creates a debugger in running mode.
func New(options ...Option) *RobotDebugger {
	d := &RobotDebugger{info: vm.NewDebugInfo()}
	d.cond = sync.NewCond(&d.mu)
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Mode returns the current execution state.
func (d *RobotDebugger) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// PausedOn returns the instruction execution is blocked at, or nil.
func (d *RobotDebugger) PausedOn() vm.Instruction {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode != ModePaused {
		return nil
	}
	return d.pausedOn
}

// AddListener registers a listener for run events.
func (d *RobotDebugger) AddListener(l Listener) {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	d.listeners = append(d.listeners, l)
}

func (d *RobotDebugger) emit(fn func(Listener)) {
	d.cfgMu.Lock()
	listeners := slices.Clone(d.listeners)
	d.cfgMu.Unlock()
	for _, l := range listeners {
		fn(l)
	}
}

func (d *RobotDebugger) childDebuggers() []vm.Debugger {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	return slices.Clone(d.children)
}

// setMode changes the mode unless the debugger was stopped, and wakes a
// paused executor.
func (d *RobotDebugger) setMode(mode Mode) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == ModeStopped {
		return false
	}
	d.mode = mode
	d.cond.Broadcast()
	return true
}

func (d *RobotDebugger) Pause(userAction bool) {
	if !d.setMode(ModePaused) {
		return
	}
	log.Debug().Bool("user_action", userAction).Msg("robot pause requested")
	for _, child := range d.childDebuggers() {
		child.Pause(userAction)
	}
}

func (d *RobotDebugger) Resume() {
	d.setMode(ModeRunning)
}

func (d *RobotDebugger) Stop() {
	d.mu.Lock()
	wasStopped := d.mode == ModeStopped
	d.mode = ModeStopped
	d.stopped.Store(true)
	d.cond.Broadcast()
	d.mu.Unlock()
	if !wasStopped {
		d.emit(func(l Listener) { l.OnRobotInterrupted() })
	}
	for _, child := range d.childDebuggers() {
		child.Stop()
	}
}

func (d *RobotDebugger) StepIn() {
	d.setMode(ModeStepIn)
}

func (d *RobotDebugger) StepOver() {
	depth := d.StackDepth()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == ModeStopped {
		return
	}
	d.stepDepth = depth
	d.mode = ModeStepOver
	d.cond.Broadcast()
}

// Reset makes a stopped debugger usable for another run and forgets the
// registered debug information.
func (d *RobotDebugger) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode != ModeStopped {
		return
	}
	d.mode = ModeRunning
	d.stopped.Store(false)
	d.cfgMu.Lock()
	d.info = vm.NewDebugInfo()
	d.cfgMu.Unlock()
}

func (d *RobotDebugger) AddBreakpoint(bp vm.Breakpoint) {
	d.bpMu.Lock()
	defer d.bpMu.Unlock()
	d.breakpoints = append(d.breakpoints, bp)
}

func (d *RobotDebugger) SetBreakpoints(bps []vm.Breakpoint) {
	d.bpMu.Lock()
	defer d.bpMu.Unlock()
	d.breakpoints = slices.Clone(bps)
}

// ClearBreakpoints removes every breakpoint.
func (d *RobotDebugger) ClearBreakpoints() {
	d.SetBreakpoints(nil)
}

// Breakpoints returns the installed breakpoints.
func (d *RobotDebugger) Breakpoints() []vm.Breakpoint {
	d.bpMu.RLock()
	defer d.bpMu.RUnlock()
	return slices.Clone(d.breakpoints)
}

func (d *RobotDebugger) hitsBreakpoint(instr vm.Instruction) bool {
	d.bpMu.RLock()
	defer d.bpMu.RUnlock()
	for _, bp := range d.breakpoints {
		if bp.Matches(instr) {
			return true
		}
	}
	return false
}

func (d *RobotDebugger) StartInstruction(instr vm.Instruction) {
	d.stackMu.Lock()
	d.stack = append(d.stack, instr)
	depth := max(len(d.stack)-1, 0)
	d.stackMu.Unlock()

	hit := d.hitsBreakpoint(instr)
	d.mu.Lock()
	switch {
	case d.mode == ModeStopped:
	case hit:
		d.mode = ModePaused
	case d.mode == ModeStepIn:
		d.mode = ModePaused
	case d.mode == ModeStepOver && depth <= d.stepDepth:
		d.mode = ModePaused
	}
	d.mu.Unlock()

	d.waitWhilePaused(instr)
}

func (d *RobotDebugger) EndInstruction(instr vm.Instruction, result vm.Flow) {
	d.waitWhilePaused(instr)
	d.stackMu.Lock()
	defer d.stackMu.Unlock()
	if n := len(d.stack); n > 0 {
		d.stack[n-1] = nil
		d.stack = d.stack[:n-1]
	}
}

// waitWhilePaused blocks the executing goroutine until the mode leaves
// ModePaused.
func (d *RobotDebugger) waitWhilePaused(instr vm.Instruction) {
	d.mu.Lock()
	if d.mode != ModePaused {
		d.mu.Unlock()
		return
	}
	d.pausedOn = instr
	d.mu.Unlock()

	event := PauseEvent{Instruction: instr, Position: instr.Position(), StackDepth: d.StackDepth()}
	log.Debug().Str("robot", event.Position.Robot.String()).Int("line", event.Position.Line).Msg("robot paused")
	d.emit(func(l Listener) { l.OnRobotPaused(event) })

	d.mu.Lock()
	for d.mode == ModePaused {
		d.cond.Wait()
	}
	d.pausedOn = nil
	d.mu.Unlock()

	log.Debug().Str("robot", event.Position.Robot.String()).Int("line", event.Position.Line).Msg("robot continued")
	d.emit(func(l Listener) { l.OnRobotContinued(event) })
}

func (d *RobotDebugger) Returning(block *vm.InstructionSet, result vm.Flow) {}

func (d *RobotDebugger) RobotStarted(robot *vm.Robot) {
	d.stackMu.Lock()
	d.stack = nil
	d.functions = nil
	d.stackMu.Unlock()
	event := RobotEvent{Robot: robot.ID(), RunID: robot.RunID()}
	d.emit(func(l Listener) { l.OnRobotStarted(event) })
}

func (d *RobotDebugger) RobotFinished(robot *vm.Robot) {
	event := RobotEvent{Robot: robot.ID(), RunID: robot.RunID()}
	d.emit(func(l Listener) { l.OnRobotStopped(event) })
	log.Debug().Str("robot", robot.ID().String()).Str("run_id", robot.RunID().String()).Msg("robot finished")
}

func (d *RobotDebugger) StartFunction(fn *vm.FunctionDeclaration) {
	d.stackMu.Lock()
	defer d.stackMu.Unlock()
	d.functions = append(d.functions, functionFrame{fn: fn, stackSize: len(d.stack)})
}

func (d *RobotDebugger) EndFunction(fn *vm.FunctionDeclaration) {
	d.stackMu.Lock()
	defer d.stackMu.Unlock()
	if n := len(d.functions); n > 0 {
		d.functions = d.functions[:n-1]
	}
}

func (d *RobotDebugger) ShouldStop() bool {
	return d.stopped.Load()
}

func (d *RobotDebugger) StackTrace() []vm.Instruction {
	d.stackMu.RLock()
	defer d.stackMu.RUnlock()
	return slices.Clone(d.stack)
}

// StackDepth is zero both for the first instruction and for library
// initializers, which run outside any instruction.
func (d *RobotDebugger) StackDepth() int {
	d.stackMu.RLock()
	defer d.stackMu.RUnlock()
	return max(len(d.stack)-1, 0)
}

// Frames describes the active instructions, outermost first, naming the
// function each of them runs in.
func (d *RobotDebugger) Frames() []errz.StackFrame {
	d.stackMu.RLock()
	defer d.stackMu.RUnlock()
	frames := make([]errz.StackFrame, len(d.stack))
	fn := 0
	for i, instr := range d.stack {
		for fn < len(d.functions) && d.functions[fn].stackSize <= i {
			fn++
		}
		frame := errz.StackFrame{Location: instr.Position().Location()}
		if fn > 0 {
			frame.Function = d.functions[fn-1].fn.Name()
		}
		frames[i] = frame
	}
	return frames
}

// Handle reports the error to the output handler and lets the installed
// policy decide. Without a policy the error is rethrown with the current
// stack attached.
func (d *RobotDebugger) Handle(err error) error {
	if err == nil {
		return nil
	}
	var at vm.Instruction
	if stack := d.StackTrace(); len(stack) > 0 {
		at = stack[len(stack)-1]
	}
	var se *errz.StructuredError
	if errors.As(err, &se) && len(se.Stack) == 0 {
		se.Stack = d.Frames()
	}
	d.cfgMu.Lock()
	out, policy := d.output, d.policy
	d.cfgMu.Unlock()
	return vm.HandleError(out, policy, at, err)
}

func (d *RobotDebugger) SetErrorHandler(policy vm.ErrorHandlingPolicy) {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	d.policy = policy
}

func (d *RobotDebugger) SetOutputHandler(out vm.OutputHandler) {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	d.output = out
}

// CreateChild returns a StoppableDebugger for a sub-robot. It is stopped
// together with this debugger; pausing does not reach it.
func (d *RobotDebugger) CreateChild() vm.Debugger {
	child := NewStoppableDebugger(d)
	d.cfgMu.Lock()
	child.SetOutputHandler(d.output)
	d.children = append(d.children, child)
	d.cfgMu.Unlock()
	if d.ShouldStop() {
		child.Stop()
	}
	return child
}

func (d *RobotDebugger) RemoveChild(child vm.Debugger) {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	d.children = slices.DeleteFunc(d.children, func(c vm.Debugger) bool {
		return c == child
	})
}

func (d *RobotDebugger) AddDebugInfo(info *vm.DebugInfo) {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	d.info.Add(info)
}

func (d *RobotDebugger) debugInfo() *vm.DebugInfo {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	return d.info
}

type scopedVariable struct {
	decl     *vm.VariableDeclaration
	distance int
}

// Variables returns the declarations visible from instr, sorted by line.
// A declaration is visible when it belongs to the same robot, lives in a
// block enclosing instr, is declared above it and currently holds a value.
// Of several declarations with one name, the nearest scope wins.
func (d *RobotDebugger) Variables(instr vm.Instruction) ([]*vm.VariableDeclaration, error) {
	if d.Mode() != ModePaused {
		return nil, ErrNotPaused
	}
	if instr == nil {
		return nil, nil
	}
	if instr.Host() == nil {
		return nil, fmt.Errorf("no instruction set found for %s", instr.Position())
	}

	byName := map[string]scopedVariable{}
	robot := instr.Position().Robot
	for _, decl := range d.debugInfo().Variables() {
		if decl.Position().Robot != robot {
			continue
		}
		distance, ok := scopeDistance(decl, instr)
		if !ok {
			continue
		}
		if prev, seen := byName[decl.Name()]; seen && prev.distance <= distance {
			continue
		}
		byName[decl.Name()] = scopedVariable{decl: decl, distance: distance}
	}

	result := make([]*vm.VariableDeclaration, 0, len(byName))
	for _, v := range byName {
		result = append(result, v.decl)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Position().Line < result[j].Position().Line
	})
	return result, nil
}

// scopeDistance walks from instr up through its enclosing blocks until it
// reaches the block hosting decl. It returns the number of blocks crossed.
func scopeDistance(decl *vm.VariableDeclaration, instr vm.Instruction) (int, bool) {
	host := decl.Host()
	if host == nil {
		return 0, false
	}
	distance := 0
	for check := instr; check != nil; check = vm.Parent(check) {
		if check.Host() == host {
			return distance, decl.HasValue() && check.Position().Line > decl.Position().Line
		}
		distance++
	}
	return 0, false
}

// VariableValue returns the value of decl as seen by the instruction at
// stackPosition, counted from the top of the stack starting at 1. The
// search covers the scopes of the enclosing function only, so a recursive
// call never shows the values of another invocation, and falls back to the
// robot level.
func (d *RobotDebugger) VariableValue(decl *vm.VariableDeclaration, stackPosition int) object.Object {
	depth := d.StackDepth() - (stackPosition - 1)
	var scope vm.Instruction = decl
	for {
		if value := decl.Peek(depth); value != nil {
			return value
		}
		scope = vm.Parent(scope)
		depth--
		if scope == nil {
			break
		}
		if _, isFunction := scope.(*vm.FunctionDeclaration); isFunction {
			break
		}
	}
	if value := decl.Peek(0); value != nil {
		return value
	}
	return object.Null
}
