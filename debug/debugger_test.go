package debug

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
	"github.com/deepnoodle-ai/robot/vm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testID = vm.RobotID{Name: "test"}

// recorder is a construct storing the string form of its first argument.
type recorder struct {
	mu     sync.Mutex
	values []string
}

func (r *recorder) Name() string {
	return "record"
}

func (r *recorder) Process(ctx vm.ConstructContext, args []object.Object) (object.Object, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, args[0].String())
	return object.Null, nil
}

func (r *recorder) Values() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

func (r *recorder) call(line int, value string) vm.Instruction {
	instr := vm.NewExpressionInstruction(vm.NewConstructCall(nil, r, []vm.Expression{vm.NewLiteral(object.NewString(value))}))
	return at(line, instr)
}

func at(line int, instr vm.Instruction) vm.Instruction {
	instr.(vm.Positioned).SetPosition(vm.Position{Robot: testID, Line: line})
	return instr
}

func robot(instrs ...vm.Instruction) *vm.Robot {
	r := vm.NewRobot(testID, nil)
	for _, instr := range instrs {
		r.Add(instr)
	}
	return r
}

func block(instrs ...vm.Instruction) *vm.InstructionSet {
	b := vm.NewInstructionSet(nil)
	for _, instr := range instrs {
		b.Add(instr)
	}
	return b
}

// pauses collects pause and interrupt events.
type pauses struct {
	NoOpListener
	paused      chan PauseEvent
	interrupted chan struct{}
}

func newPauses() *pauses {
	return &pauses{paused: make(chan PauseEvent, 16), interrupted: make(chan struct{}, 16)}
}

func (p *pauses) OnRobotPaused(event PauseEvent) {
	p.paused <- event
}

func (p *pauses) OnRobotInterrupted() {
	p.interrupted <- struct{}{}
}

func (p *pauses) next(t *testing.T) PauseEvent {
	t.Helper()
	select {
	case event := <-p.paused:
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("robot did not pause")
		return PauseEvent{}
	}
}

type runResult struct {
	value object.Object
	err   error
}

func start(r *vm.Robot, dbg vm.Debugger) <-chan runResult {
	done := make(chan runResult, 1)
	go func() {
		value, err := vm.Run(context.Background(), r, dbg)
		done <- runResult{value: value, err: err}
	}()
	return done
}

func finish(t *testing.T, done <-chan runResult) runResult {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("robot did not finish")
		return runResult{}
	}
}

func TestBreakpointPausesAndResumes(t *testing.T) {
	rec := &recorder{}
	events := newPauses()
	dbg := New(WithBreakpoints(vm.Breakpoint{Robot: testID, Line: 2}), WithListener(events))
	done := start(robot(rec.call(1, "a"), rec.call(2, "b"), rec.call(3, "c")), dbg)

	event := events.next(t)
	require.Equal(t, 2, event.Position.Line)
	require.Equal(t, ModePaused, dbg.Mode())
	require.Equal(t, event.Instruction, dbg.PausedOn())
	require.Equal(t, []string{"a"}, rec.Values())
	require.Len(t, dbg.StackTrace(), 1)

	dbg.Resume()
	res := finish(t, done)
	require.NoError(t, res.err)
	require.Equal(t, []string{"a", "b", "c"}, rec.Values())
	require.Equal(t, ModeRunning, dbg.Mode())
	require.Empty(t, dbg.StackTrace())
}

func TestStepIn(t *testing.T) {
	rec := &recorder{}
	events := newPauses()
	dbg := New(WithBreakpoints(vm.Breakpoint{Robot: testID, Line: 1}), WithListener(events))
	done := start(robot(rec.call(1, "a"), rec.call(2, "b"), rec.call(3, "c")), dbg)

	require.Equal(t, 1, events.next(t).Position.Line)
	dbg.StepIn()
	require.Equal(t, 2, events.next(t).Position.Line)
	require.Equal(t, []string{"a"}, rec.Values())
	dbg.Resume()
	require.NoError(t, finish(t, done).err)
	require.Equal(t, []string{"a", "b", "c"}, rec.Values())
}

func TestStepOverSkipsNestedInstructions(t *testing.T) {
	rec := &recorder{}
	events := newPauses()
	dbg := New(WithBreakpoints(vm.Breakpoint{Robot: testID, Line: 1}), WithListener(events))
	cond := vm.NewLiteral(object.NewBool(true))
	ifInstr := at(2, vm.NewIfInstruction([]vm.ConditionalBranch{{Condition: cond, Body: block(rec.call(3, "nested"))}}, nil))
	done := start(robot(rec.call(1, "a"), ifInstr, rec.call(4, "b")), dbg)

	require.Equal(t, 1, events.next(t).Position.Line)
	dbg.StepOver()
	require.Equal(t, 2, events.next(t).Position.Line)
	dbg.StepOver()
	event := events.next(t)
	require.Equal(t, 4, event.Position.Line)
	require.Equal(t, 0, event.StackDepth)
	require.Equal(t, []string{"a", "nested"}, rec.Values())
	dbg.Resume()
	require.NoError(t, finish(t, done).err)
}

func TestStopWhilePaused(t *testing.T) {
	rec := &recorder{}
	events := newPauses()
	dbg := New(WithBreakpoints(vm.Breakpoint{Robot: testID, Line: 2}), WithListener(events))
	done := start(robot(rec.call(1, "a"), rec.call(2, "b"), rec.call(3, "c")), dbg)

	events.next(t)
	dbg.Stop()
	dbg.Stop()
	res := finish(t, done)
	require.NoError(t, res.err)
	require.True(t, object.IsNull(res.value))
	require.Equal(t, []string{"a"}, rec.Values())
	require.True(t, dbg.ShouldStop())
	require.Len(t, events.interrupted, 1)

	// Stopped debuggers ignore mode changes until reset.
	dbg.Resume()
	dbg.StepIn()
	require.Equal(t, ModeStopped, dbg.Mode())
	dbg.Reset()
	require.Equal(t, ModeRunning, dbg.Mode())
	require.False(t, dbg.ShouldStop())
}

func TestVariablesWhilePaused(t *testing.T) {
	rec := &recorder{}
	events := newPauses()
	x := vm.NewVariableDeclaration("x", vm.NewLiteral(object.NewInt(1)))
	y := vm.NewVariableDeclaration("y", vm.NewLiteral(object.NewString("why")))
	late := vm.NewVariableDeclaration("late", nil)
	info := vm.NewDebugInfo()
	for _, decl := range []*vm.VariableDeclaration{late, y, x} {
		info.AddVariable(decl)
	}
	dbg := New(WithBreakpoints(vm.Breakpoint{Robot: testID, Line: 3}), WithListener(events), WithDebugInfo(info))

	_, err := dbg.Variables(nil)
	require.ErrorIs(t, err, ErrNotPaused)

	done := start(robot(at(1, x), at(2, y), rec.call(3, "a"), at(4, late)), dbg)
	event := events.next(t)

	vars, err := dbg.Variables(event.Instruction)
	require.NoError(t, err)
	require.Equal(t, []*vm.VariableDeclaration{x, y}, vars)
	require.Equal(t, "1", dbg.VariableValue(x, 1).String())
	require.Equal(t, "why", dbg.VariableValue(y, 1).String())
	require.True(t, object.IsNull(dbg.VariableValue(late, 1)))

	dbg.Resume()
	require.NoError(t, finish(t, done).err)
}

func TestVariablesNearestScopeWins(t *testing.T) {
	rec := &recorder{}
	events := newPauses()
	outer := vm.NewVariableDeclaration("x", vm.NewLiteral(object.NewInt(1)))
	inner := vm.NewVariableDeclaration("x", vm.NewLiteral(object.NewInt(2)))
	body := block(at(3, inner), rec.call(4, "a"))
	ifInstr := at(2, vm.NewIfInstruction([]vm.ConditionalBranch{{Condition: vm.NewLiteral(object.NewBool(true)), Body: body}}, nil))
	info := vm.NewDebugInfo()
	info.AddVariable(outer)
	info.AddVariable(inner)
	dbg := New(WithBreakpoints(vm.Breakpoint{Robot: testID, Line: 4}), WithListener(events))
	dbg.AddDebugInfo(info)

	done := start(robot(at(1, outer), ifInstr), dbg)
	event := events.next(t)

	vars, err := dbg.Variables(event.Instruction)
	require.NoError(t, err)
	require.Equal(t, []*vm.VariableDeclaration{inner}, vars)
	require.Equal(t, "2", dbg.VariableValue(inner, 1).String())

	dbg.Resume()
	require.NoError(t, finish(t, done).err)
}

func TestVariableValueAtRobotLevel(t *testing.T) {
	dbg := New()
	decl := vm.NewVariableDeclaration("x", nil)
	block(decl)
	value := object.NewString("root")
	decl.Push(value, 0)
	dbg.StartInstruction(at(1, vm.NewBreakInstruction()))

	require.Equal(t, value, dbg.VariableValue(decl, 1))
}

func TestVariableValueInFunction(t *testing.T) {
	dbg := New()
	decl := vm.NewVariableDeclaration("x", nil)
	vm.NewFunctionDeclaration("f", nil, block(decl))
	values := []object.Object{object.NewInt(1), object.NewInt(2), object.NewInt(3)}
	for i, v := range values {
		decl.Push(v, i+1)
	}
	for range 4 {
		dbg.StartInstruction(at(1, vm.NewBreakInstruction()))
	}

	require.Equal(t, values[2], dbg.VariableValue(decl, 1))
	// A recursive call shows the value of its own invocation.
	require.Equal(t, values[1], dbg.VariableValue(decl, 2))
}

func TestVariableValueFallsBackToRobotLevel(t *testing.T) {
	dbg := New()
	decl := vm.NewVariableDeclaration("x", nil)
	vm.NewFunctionDeclaration("f", nil, block(decl))
	value := object.NewString("root")
	decl.Push(value, 0)
	dbg.StartInstruction(at(1, vm.NewBreakInstruction()))
	dbg.StartInstruction(at(2, vm.NewBreakInstruction()))

	require.Equal(t, value, dbg.VariableValue(decl, 1))
}

type inspections struct {
	mu   sync.Mutex
	errs []error
	at   []vm.Instruction
}

func (o *inspections) HandleLog(robot vm.RobotID, level zerolog.Level, msg string, args ...any) {}

func (o *inspections) Inspect(instr vm.Instruction, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
	o.at = append(o.at, instr)
}

func TestHandleAttachesStack(t *testing.T) {
	out := &inspections{}
	dbg := New(WithOutputHandler(out))
	fn := vm.NewFunctionDeclaration("work", nil, block())
	outer := at(1, vm.NewBreakInstruction())
	inner := at(7, vm.NewBreakInstruction())
	dbg.StartInstruction(outer)
	dbg.StartFunction(fn)
	dbg.StartInstruction(inner)

	err := dbg.Handle(errz.Runtimef("broken"))
	var se *errz.StructuredError
	require.ErrorAs(t, err, &se)
	require.Equal(t, []errz.StackFrame{
		{Location: errz.SourceLocation{Robot: "test", Line: 1}},
		{Function: "work", Location: errz.SourceLocation{Robot: "test", Line: 7}},
	}, se.Stack)
	require.Equal(t, []vm.Instruction{inner}, out.at)

	dbg.EndInstruction(inner, vm.Resume())
	dbg.EndFunction(fn)
	require.Equal(t, 0, dbg.StackDepth())
}

func TestHandleWithPolicy(t *testing.T) {
	var buf bytes.Buffer
	dbg := New(WithErrorHandler(NewLogAndContinuePolicy(zerolog.New(&buf))))
	require.NoError(t, dbg.Handle(errors.New("ignored")))
	require.Contains(t, buf.String(), "ignored")
	require.NoError(t, dbg.Handle(nil))

	dbg.SetErrorHandler(RethrowPolicy{})
	require.Error(t, dbg.Handle(errors.New("thrown")))
}

func TestErrorPolicyAppliesToRun(t *testing.T) {
	rec := &recorder{}
	fail := vm.NewConstruct("fail", func(ctx vm.ConstructContext, args []object.Object) (object.Object, error) {
		return nil, errz.Runtimef("nope")
	})
	r := robot(at(1, vm.NewExpressionInstruction(vm.NewConstructCall(nil, fail, nil))), rec.call(2, "after"))
	dbg := New()

	_, err := vm.Run(context.Background(), r, dbg, vm.WithErrorHandler(NewLogAndContinuePolicy(zerolog.Nop())))
	require.NoError(t, err)
	require.Equal(t, []string{"after"}, rec.Values())
}

func TestChildrenFollowParent(t *testing.T) {
	dbg := New()
	child := dbg.CreateChild()
	removed := dbg.CreateChild()
	dbg.RemoveChild(removed)
	require.IsType(t, &StoppableDebugger{}, child)

	dbg.Stop()
	require.True(t, child.ShouldStop())
	require.False(t, removed.ShouldStop())
	require.True(t, dbg.CreateChild().ShouldStop())
}

func TestSubRobotRunsUnderChild(t *testing.T) {
	events := newPauses()
	started := 0
	listener := ListenerFuncs{Started: func(RobotEvent) { started++ }}
	dbg := New(WithListener(events), WithListener(listener))

	arg := vm.NewVariableDeclaration("arg", nil)
	loader := loaderFunc(func(path string, caller vm.RobotID) (*vm.Robot, error) {
		arg = vm.NewVariableDeclaration("arg", nil)
		sub := vm.NewRobot(vm.RobotID{Name: path}, nil)
		sub.Add(arg)
		sub.Add(vm.NewReturnInstruction(vm.NewVariableRef(arg)))
		arg.TakeArgumentFrom(sub)
		return sub, nil
	})
	r := vm.NewRobot(testID, nil)
	r.Add(vm.NewReturnInstruction(vm.NewCallRobotExpression(loader, r, vm.NewLiteral(object.NewString("echo")), vm.NewLiteral(object.NewString("hi")))))

	value, err := vm.Run(context.Background(), r, dbg)
	require.NoError(t, err)
	require.Equal(t, "hi", value.String())
	require.Equal(t, 1, started)
	require.Empty(t, dbg.childDebuggers())
	require.Equal(t, 0, arg.Depth())
}

type loaderFunc func(path string, caller vm.RobotID) (*vm.Robot, error)

func (f loaderFunc) LoadRobot(path string, caller vm.RobotID) (*vm.Robot, error) {
	return f(path, caller)
}

func TestModeString(t *testing.T) {
	require.Equal(t, "paused", ModePaused.String())
	require.Equal(t, "step-over", ModeStepOver.String())
	require.Equal(t, "unknown", Mode(42).String())
}
