package vm

import (
	"context"
	"sort"
	"testing"

	"github.com/deepnoodle-ai/robot/object"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	dbg := newTestDebugger()
	r := newTestRobot(testRobotID, NewReturnInstruction(bin(t, "+", num(1), num(1))))

	result, err := Run(context.Background(), r, dbg)
	require.NoError(t, err)
	require.Equal(t, "2", result.String())
	require.Equal(t, 1, dbg.started)
	require.Equal(t, 1, dbg.finished)
	require.False(t, r.RunID().IsNil())
}

func TestRunEmpty(t *testing.T) {
	result, err := Run(context.Background(), newTestRobot(testRobotID), NewNullDebugger())
	require.NoError(t, err)
	require.True(t, object.IsNull(result))
}

func TestRunError(t *testing.T) {
	r := newTestRobot(testRobotID, at(4, stmt(NewConstructCall(nil, failConstruct, []Expression{str("broken")}))))
	_, err := Run(context.Background(), r, NewNullDebugger())
	require.Error(t, err)
	require.Equal(t, "runtime error: broken (test:4)", err.Error())
}

func TestRobotRunsOnce(t *testing.T) {
	r := newTestRobot(testRobotID)
	_, err := Run(context.Background(), r, NewNullDebugger())
	require.NoError(t, err)
	_, err = Run(context.Background(), r, NewNullDebugger())
	require.ErrorContains(t, err, "This robot cannot run twice.")
}

func TestRunReturnsLiveValue(t *testing.T) {
	x := NewVariableDeclaration("x", NewListExpression([]Expression{str("a")}))
	r := newTestRobot(testRobotID, x, NewReturnInstruction(ref(x)))

	result, err := Run(context.Background(), r, NewNullDebugger())
	require.NoError(t, err)
	require.False(t, result.IsClosed())
	require.Equal(t, `["a"]`, result.String())
	require.Equal(t, 0, x.Depth())
}

func TestRunReleasesEverything(t *testing.T) {
	var kept object.Object
	keep := NewConstruct("keep", func(ctx ConstructContext, args []object.Object) (object.Object, error) {
		kept = args[0]
		return object.Null, nil
	})
	item := object.NewString("a")
	x := NewVariableDeclaration("x", NewListExpression([]Expression{NewLiteral(item)}))
	r := newTestRobot(testRobotID, x, stmt(NewConstructCall(nil, keep, []Expression{ref(x)})))

	_, err := Run(context.Background(), r, NewNullDebugger())
	require.NoError(t, err)
	require.NotNil(t, kept)
	require.True(t, kept.IsClosed())
	require.Equal(t, 1, item.RefCount())
	require.False(t, item.IsClosed())
}

func TestRunArgument(t *testing.T) {
	arg := NewVariableDeclaration("arg", str("default"))
	r := newTestRobot(testRobotID, arg, NewReturnInstruction(ref(arg)))
	arg.TakeArgumentFrom(r)

	result, err := Run(context.Background(), r, NewNullDebugger(), WithArgument(object.NewString("given")))
	require.NoError(t, err)
	require.Equal(t, "given", result.String())

	arg = NewVariableDeclaration("arg", str("default"))
	r = newTestRobot(testRobotID, arg, NewReturnInstruction(ref(arg)))
	arg.TakeArgumentFrom(r)
	result, err = Run(context.Background(), r, NewNullDebugger())
	require.NoError(t, err)
	require.Equal(t, "default", result.String())
}

func TestRunWithErrorHandler(t *testing.T) {
	var handled []error
	dbg := &policyDebugger{NullDebugger: NewNullDebugger()}
	rec := &recorder{}
	r := newTestRobot(testRobotID, stmt(NewConstructCall(nil, failConstruct, nil)), rec.call(str("after")))

	_, err := Run(context.Background(), r, dbg, WithErrorHandler(ErrorHandlingFunc(func(err error) error {
		handled = append(handled, err)
		return nil
	})))
	require.NoError(t, err)
	require.Len(t, handled, 1)
	require.Equal(t, []string{"after"}, rec.Values())
}

func TestStopPropagatesThroughNestedLoops(t *testing.T) {
	rec := &recorder{}
	spin := NewFunctionDeclaration("spin", nil, block(
		NewWhileInstruction(NewLiteral(object.NewBool(true)), block(rec.call(str("tick")))),
	))
	v := NewVariableDeclaration("v", nil)
	loop := NewForeachInstruction(
		NewListExpression([]Expression{num(1), num(2), num(3)}),
		v, nil, block(stmt(NewFunctionCall(spin, nil))),
	)
	r := newTestRobot(testRobotID, spin, loop, rec.call(str("after")))
	dbg := newTestDebugger()
	dbg.stopAfter = 20

	result, err := Run(context.Background(), r, dbg)
	require.NoError(t, err)
	require.True(t, object.IsNull(result))
	values := rec.Values()
	require.NotEmpty(t, values)
	require.NotContains(t, values, "after")
	require.Equal(t, dbg.starts, dbg.ends)
	require.Equal(t, 0, v.Depth())
	require.Equal(t, 0, dbg.depth)
}

func TestRunContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelling := NewConstruct("cancel", func(ctx ConstructContext, args []object.Object) (object.Object, error) {
		cancel()
		return object.Null, nil
	})
	r := NewRobot(testRobotID, nil)
	r.Add(NewWhileInstruction(NewLiteral(object.NewBool(true)), block(stmt(NewConstructCall(r, cancelling, nil)))))

	_, err := Run(ctx, r, newTestDebugger())
	require.ErrorIs(t, err, context.Canceled)
}

func TestConstructSeesRobotContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")
	var seen ConstructContext
	probe := NewConstruct("probe", func(cctx ConstructContext, args []object.Object) (object.Object, error) {
		seen = cctx
		return object.Null, nil
	})
	r := NewRobot(testRobotID, nil)
	r.Add(stmt(NewConstructCall(r, probe, nil)))

	_, err := Run(ctx, r, NewNullDebugger())
	require.NoError(t, err)
	require.Equal(t, "value", seen.Value(key{}))
	require.Equal(t, testRobotID, seen.Robot)
	require.NotNil(t, seen.Debugger)
}

func TestLibrariesAreInitialized(t *testing.T) {
	rec := &recorder{}
	y := NewVariableDeclaration("y", num(5))
	lib := newTestRobot(RobotID{Name: "lib"}, y, rec.call(str("library body")))
	r := newTestRobot(testRobotID, NewReturnInstruction(bin(t, "+", ref(y), num(1))))
	r.AddLibrary(lib)

	result, err := Run(context.Background(), r, NewNullDebugger())
	require.NoError(t, err)
	require.Equal(t, "6", result.String())
	require.Empty(t, rec.Values())
	require.Equal(t, 0, y.Depth())
	require.NoError(t, r.Close())
}

func TestSharedLibraryInitializedOnce(t *testing.T) {
	y := NewVariableDeclaration("y", num(1))
	shared := newTestRobot(RobotID{Name: "shared"}, y)
	a := newTestRobot(RobotID{Name: "a"})
	a.AddLibrary(shared)
	r := newTestRobot(testRobotID, NewReturnInstruction(ref(y)))
	r.AddLibrary(a)
	r.AddLibrary(shared)

	result, err := Run(context.Background(), r, NewNullDebugger())
	require.NoError(t, err)
	require.Equal(t, "1", result.String())
	require.Equal(t, 0, y.Depth())
}

func doubler() *Robot {
	arg := NewVariableDeclaration("arg", nil)
	sub := newTestRobot(RobotID{Name: "double"}, arg, NewReturnInstruction(mustBinary("*", NewVariableRef(arg), num(2))))
	arg.TakeArgumentFrom(sub)
	return sub
}

func mustBinary(symbol string, left, right Expression) Expression {
	b, err := NewBinaryOperation(symbol, left, right)
	if err != nil {
		panic(err)
	}
	return b
}

func TestCallRobot(t *testing.T) {
	loader := mapLoader{"double": doubler}
	r := NewRobot(testRobotID, nil)
	r.Add(NewReturnInstruction(NewCallRobotExpression(loader, r, str("double"), num(21))))

	result, err := Run(context.Background(), r, NewNullDebugger())
	require.NoError(t, err)
	require.Equal(t, "42", result.String())
	require.Equal(t, 0, r.Threads().Active())
}

func TestCallRobotError(t *testing.T) {
	loader := mapLoader{"boom": func() *Robot {
		return newTestRobot(RobotID{Name: "boom"},
			at(4, stmt(NewConstructCall(nil, failConstruct, []Expression{str("kaput")}))))
	}}
	r := NewRobot(testRobotID, nil)
	r.Add(stmt(NewCallRobotExpression(loader, r, str("boom"), nil)))

	_, err := Run(context.Background(), r, NewNullDebugger())
	require.ErrorContains(t, err, "Caused by 'boom' (line 4): kaput")
}

func TestCallRobotMissing(t *testing.T) {
	r := NewRobot(testRobotID, nil)
	r.Add(stmt(NewCallRobotExpression(mapLoader{}, r, str("nowhere"), nil)))

	_, err := Run(context.Background(), r, NewNullDebugger())
	require.ErrorContains(t, err, "Error while calling robot")
}

func TestRunBulk(t *testing.T) {
	rec := &recorder{}
	loader := mapLoader{"item": func() *Robot {
		arg := NewVariableDeclaration("arg", nil)
		sub := newTestRobot(RobotID{Name: "item"}, arg, rec.call(NewVariableRef(arg)))
		arg.TakeArgumentFrom(sub)
		return sub
	}}
	r := NewRobot(testRobotID, nil)
	items := NewListExpression([]Expression{num(1), num(2), num(3)})
	options := NewMapExpression([]MapEntry{{Key: str("maxThreads"), Value: num(2)}})
	r.Add(NewReturnInstruction(NewRunBulkExpression(loader, r, str("item"), items, options)))

	result, err := Run(context.Background(), r, NewNullDebugger())
	require.NoError(t, err)
	require.Equal(t, "3", result.String())
	values := rec.Values()
	sort.Strings(values)
	require.Equal(t, []string{"1", "2", "3"}, values)
}

func TestRunBulkCopiesItems(t *testing.T) {
	loader := mapLoader{"mutate": func() *Robot {
		arg := NewVariableDeclaration("arg", nil)
		sub := newTestRobot(RobotID{Name: "mutate"}, arg, NewAssign(arg, []Expression{str("seen")}, num(1)))
		arg.TakeArgumentFrom(sub)
		return sub
	}}
	item := NewVariableDeclaration("item", NewMapExpression([]MapEntry{{Key: str("id"), Value: num(1)}}))
	r := NewRobot(testRobotID, nil)
	r.Add(item)
	r.Add(stmt(NewRunBulkExpression(loader, r, str("mutate"), NewListExpression([]Expression{ref(item)}), nil)))
	r.Add(NewReturnInstruction(ref(item)))

	result, err := Run(context.Background(), r, NewNullDebugger())
	require.NoError(t, err)
	require.Equal(t, `{"id":1}`, result.String())
}

func TestRunBulkError(t *testing.T) {
	loader := mapLoader{"fail": func() *Robot {
		return newTestRobot(RobotID{Name: "fail"}, stmt(NewConstructCall(nil, failConstruct, []Expression{str("nope")})))
	}}
	r := NewRobot(testRobotID, nil)
	items := NewListExpression([]Expression{num(1), num(2), num(3)})
	options := NewMapExpression([]MapEntry{{Key: str("maxThreads"), Value: num(1)}})
	r.Add(stmt(NewRunBulkExpression(loader, r, str("fail"), items, options)))

	_, err := Run(context.Background(), r, NewNullDebugger())
	require.ErrorContains(t, err, "Caused by 'fail'")
}

func TestRunBulkInvalidOptions(t *testing.T) {
	r := NewRobot(testRobotID, nil)
	options := NewMapExpression([]MapEntry{{Key: str("threads"), Value: num(1)}})
	r.Add(stmt(NewRunBulkExpression(mapLoader{}, r, str("x"), NewListExpression(nil), options)))

	_, err := Run(context.Background(), r, NewNullDebugger())
	require.ErrorContains(t, err, "not a valid option name")
}

// policyDebugger applies the installed error policy.
type policyDebugger struct {
	*NullDebugger
	policy ErrorHandlingPolicy
}

func (d *policyDebugger) SetErrorHandler(policy ErrorHandlingPolicy) {
	d.policy = policy
}

func (d *policyDebugger) Handle(err error) error {
	return HandleError(nil, d.policy, nil, err)
}
