package vm

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
	"github.com/stretchr/testify/require"
)

var testRobotID = RobotID{Name: "test"}

// testDebugger records the events of a run. It keeps an instruction stack,
// counts function depth and can stop itself after a number of instructions.
type testDebugger struct {
	*NullDebugger

	mu        sync.Mutex
	stack     []Instruction
	depth     int
	starts    int
	ends      int
	functions []string
	errs      []error
	started   int
	finished  int

	stopAfter int
	absorb    bool
	stopped   atomic.Bool
}

func newTestDebugger() *testDebugger {
	return &testDebugger{NullDebugger: NewNullDebugger()}
}

func (d *testDebugger) StartInstruction(instr Instruction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stack = append(d.stack, instr)
	d.starts++
	if d.stopAfter > 0 && d.starts >= d.stopAfter {
		d.stopped.Store(true)
	}
}

func (d *testDebugger) EndInstruction(instr Instruction, result Flow) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ends++
	if len(d.stack) > 0 {
		d.stack = d.stack[:len(d.stack)-1]
	}
}

func (d *testDebugger) RobotStarted(robot *Robot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started++
}

func (d *testDebugger) RobotFinished(robot *Robot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finished++
}

func (d *testDebugger) StartFunction(fn *FunctionDeclaration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depth++
	d.functions = append(d.functions, fn.Name())
}

func (d *testDebugger) EndFunction(fn *FunctionDeclaration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depth--
}

func (d *testDebugger) StackDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.depth
}

func (d *testDebugger) StackTrace() []Instruction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Instruction(nil), d.stack...)
}

func (d *testDebugger) Stop() {
	d.stopped.Store(true)
}

func (d *testDebugger) ShouldStop() bool {
	return d.stopped.Load()
}

func (d *testDebugger) Handle(err error) error {
	d.mu.Lock()
	d.errs = append(d.errs, err)
	d.mu.Unlock()
	if d.absorb {
		return nil
	}
	return errz.Wrap(err)
}

func (d *testDebugger) CreateChild() Debugger {
	return d
}

// recorder is a construct storing the string form of its arguments.
type recorder struct {
	mu     sync.Mutex
	values []string
}

func (r *recorder) Name() string {
	return "record"
}

func (r *recorder) Process(ctx ConstructContext, args []object.Object) (object.Object, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	r.values = append(r.values, strings.Join(parts, " "))
	return object.Null, nil
}

func (r *recorder) Values() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

func (r *recorder) call(args ...Expression) Instruction {
	return stmt(NewConstructCall(nil, r, args))
}

var failConstruct = NewConstruct("fail", func(ctx ConstructContext, args []object.Object) (object.Object, error) {
	msg := "failure"
	if len(args) > 0 {
		msg = args[0].String()
	}
	return nil, errz.Runtimef("%s", msg)
})

func num(n float64) Expression {
	return NewLiteral(object.NewNumber(n))
}

func str(s string) Expression {
	return NewLiteral(object.NewString(s))
}

func ref(decl *VariableDeclaration) Expression {
	return NewVariableRef(decl)
}

func bin(t *testing.T, symbol string, left, right Expression) Expression {
	t.Helper()
	b, err := NewBinaryOperation(symbol, left, right)
	require.NoError(t, err)
	return b
}

func stmt(expr Expression) Instruction {
	return NewExpressionInstruction(expr)
}

func at(line int, instr Instruction) Instruction {
	instr.(Positioned).SetPosition(Position{Robot: testRobotID, Line: line})
	return instr
}

func block(instrs ...Instruction) *InstructionSet {
	b := NewInstructionSet(nil)
	for _, instr := range instrs {
		b.Add(instr)
	}
	return b
}

func ifThen(cond Expression, body *InstructionSet) Instruction {
	return NewIfInstruction([]ConditionalBranch{{Condition: cond, Body: body}}, nil)
}

func newTestRobot(id RobotID, instrs ...Instruction) *Robot {
	r := NewRobot(id, nil)
	for _, instr := range instrs {
		r.Add(instr)
	}
	return r
}

// mapLoader builds a fresh robot per call.
type mapLoader map[string]func() *Robot

func (l mapLoader) LoadRobot(path string, caller RobotID) (*Robot, error) {
	build, ok := l[path]
	if !ok {
		return nil, errz.Loadf(errz.SourceLocation{Robot: caller.String()}, "robot %q not found", path)
	}
	return build(), nil
}
