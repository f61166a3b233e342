package vm

import (
	"context"
	"errors"
	"testing"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestErrorBlockDebugger(t *testing.T) {
	parent := newTestDebugger()
	child := NewErrorBlockDebugger(parent)
	instr := at(7, stmt(str("x")))
	child.StartInstruction(instr)

	first := errors.New("first")
	second := errors.New("second")
	require.False(t, child.ShouldStop())
	require.NoError(t, child.Handle(first))
	require.NoError(t, child.Handle(second))
	require.NoError(t, child.Handle(nil))

	require.True(t, child.HasError())
	require.True(t, child.ShouldStop())
	require.Equal(t, first, child.Err())
	require.Equal(t, []error{second}, child.Suppressed())
	require.Equal(t, instr, child.ErroredInstruction())
	require.Empty(t, parent.errs)
	require.False(t, parent.ShouldStop())
	require.Equal(t, Debugger(parent), child.Parent())
}

func TestErrorBlockDebuggerFollowsParentStop(t *testing.T) {
	parent := newTestDebugger()
	child := NewErrorBlockDebugger(parent)
	parent.Stop()
	require.True(t, child.ShouldStop())
	require.False(t, child.HasError())
	require.Nil(t, child.Suppressed())
}

func errorBlock(rec *recorder, onError bool, finally bool, do ...Instruction) *ErrorInstruction {
	cause := NewVariableDeclaration("cause", nil)
	var errBlock, finallyBlock *InstructionSet
	if onError {
		errBlock = block(rec.call(
			str("error"),
			NewFromList(ref(cause), str("message")),
			NewFromList(ref(cause), str("line")),
		))
	}
	if finally {
		finallyBlock = block(rec.call(str("finally")))
	}
	return NewErrorInstruction(block(do...), nil, errBlock, finallyBlock, cause)
}

func TestErrorInstructionCatches(t *testing.T) {
	rec := &recorder{}
	e := errorBlock(rec, true, true,
		rec.call(str("do")),
		at(2, stmt(NewConstructCall(nil, failConstruct, []Expression{str("boom")}))),
		rec.call(str("unreached")),
	)
	dbg := newTestDebugger()
	r := newTestRobot(testRobotID, e, rec.call(str("after")))

	_, err := Run(context.Background(), r, dbg)
	require.NoError(t, err)
	require.Equal(t, []string{"do", "error boom 2", "finally", "after"}, rec.Values())
	require.Empty(t, dbg.errs)
	require.Equal(t, 0, e.cause.Depth())
}

func TestErrorInstructionSuccess(t *testing.T) {
	rec := &recorder{}
	e := NewErrorInstruction(
		block(rec.call(str("do"))),
		block(rec.call(str("success"))),
		block(rec.call(str("error"))),
		block(rec.call(str("finally"))),
		nil,
	)
	_, err := Run(context.Background(), newTestRobot(testRobotID, e), NewNullDebugger())
	require.NoError(t, err)
	require.Equal(t, []string{"do", "success", "finally"}, rec.Values())
}

func TestErrorInstructionWithoutErrorBlock(t *testing.T) {
	rec := &recorder{}
	e := errorBlock(rec, false, true, stmt(NewConstructCall(nil, failConstruct, nil)))
	dbg := newTestDebugger()
	_, err := Run(context.Background(), newTestRobot(testRobotID, e, rec.call(str("after"))), dbg)
	require.NoError(t, err)
	require.Equal(t, []string{"finally", "after"}, rec.Values())
	require.Empty(t, dbg.errs)
}

func TestErrorInErrorBlockPropagates(t *testing.T) {
	rec := &recorder{}
	e := NewErrorInstruction(
		block(stmt(NewConstructCall(nil, failConstruct, []Expression{str("first")}))),
		nil,
		block(stmt(NewConstructCall(nil, failConstruct, []Expression{str("again")}))),
		block(rec.call(str("finally"))),
		nil,
	)
	r := newTestRobot(testRobotID, e, rec.call(str("after")))
	_, err := Run(context.Background(), r, NewNullDebugger())
	require.ErrorContains(t, err, "again")
	require.Equal(t, []string{"finally"}, rec.Values())
}

func TestReturnFromDoBlock(t *testing.T) {
	rec := &recorder{}
	e := NewErrorInstruction(
		block(NewReturnInstruction(num(1)), rec.call(str("unreached"))),
		nil, nil,
		block(rec.call(str("finally"))),
		nil,
	)
	r := newTestRobot(testRobotID, e, rec.call(str("after")))
	result, err := Run(context.Background(), r, NewNullDebugger())
	require.NoError(t, err)
	require.Equal(t, "1", result.String())
	require.Equal(t, []string{"finally"}, rec.Values())
}

func TestFollowUpBlocksDoNotLeaveTheConstruct(t *testing.T) {
	fail := func() *InstructionSet {
		return block(stmt(NewConstructCall(nil, failConstruct, []Expression{str("boom")})))
	}
	tests := []struct {
		name  string
		build func(jump Instruction) *ErrorInstruction
	}{
		{"error", func(jump Instruction) *ErrorInstruction {
			return NewErrorInstruction(fail(), nil, block(jump), nil, nil)
		}},
		{"success", func(jump Instruction) *ErrorInstruction {
			return NewErrorInstruction(block(stmt(num(1))), block(jump), nil, nil, nil)
		}},
		{"finally", func(jump Instruction) *ErrorInstruction {
			return NewErrorInstruction(fail(), nil, nil, block(jump), nil)
		}},
	}
	jumps := []func() Instruction{
		func() Instruction { return NewReturnInstruction(num(7)) },
		func() Instruction { return NewBreakInstruction() },
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, jump := range jumps {
				rec := &recorder{}
				r := newTestRobot(testRobotID, tt.build(jump()), rec.call(str("after")))
				result, err := Run(context.Background(), r, NewNullDebugger())
				require.NoError(t, err)
				require.True(t, object.IsNull(result))
				require.Equal(t, []string{"after"}, rec.Values())
			}
		})
	}
}

func TestReturnFromDoBlockIgnoresFinallyReturn(t *testing.T) {
	e := NewErrorInstruction(
		block(NewReturnInstruction(num(1))),
		nil, nil,
		block(NewReturnInstruction(num(2))),
		nil,
	)
	result, err := Run(context.Background(), newTestRobot(testRobotID, e), NewNullDebugger())
	require.NoError(t, err)
	require.Equal(t, "1", result.String())
}

type inspectRecorder struct {
	inspected []error
	logs      []string
}

func (o *inspectRecorder) HandleLog(robot RobotID, level zerolog.Level, msg string, args ...any) {
	o.logs = append(o.logs, msg)
}

func (o *inspectRecorder) Inspect(instr Instruction, err error) {
	o.inspected = append(o.inspected, err)
}

func TestHandleError(t *testing.T) {
	out := &inspectRecorder{}
	require.NoError(t, HandleError(out, nil, nil, nil))
	require.Empty(t, out.inspected)

	cause := errors.New("plain")
	err := HandleError(out, nil, nil, cause)
	var se *errz.StructuredError
	require.ErrorAs(t, err, &se)
	require.Equal(t, errz.ErrRuntime, se.Kind)
	require.ErrorIs(t, err, cause)
	require.Len(t, out.inspected, 1)

	absorb := ErrorHandlingFunc(func(err error) error { return nil })
	require.NoError(t, HandleError(out, absorb, nil, cause))
	require.Len(t, out.inspected, 2)
}

func TestNullDebugger(t *testing.T) {
	out := &inspectRecorder{}
	dbg := NewNullDebugger()
	dbg.SetOutputHandler(out)
	dbg.Stop()
	require.False(t, dbg.ShouldStop())
	require.Error(t, dbg.Handle(errors.New("x")))
	require.Len(t, out.inspected, 1)
	require.Equal(t, Debugger(dbg), dbg.CreateChild())
	require.Empty(t, dbg.StackTrace())
	require.Equal(t, 0, dbg.StackDepth())
	require.True(t, object.IsNull(dbg.VariableValue(NewVariableDeclaration("x", nil), 0)))
}

func TestBreakpointMatches(t *testing.T) {
	instr := stmt(str("x"))
	instr.(Positioned).SetPosition(Position{Robot: RobotID{Path: "a.yaml"}, Line: 3})
	require.True(t, Breakpoint{Robot: RobotID{Path: "a.yaml"}, Line: 3}.Matches(instr))
	require.False(t, Breakpoint{Robot: RobotID{Path: "a.yaml"}, Line: 4}.Matches(instr))
	require.False(t, Breakpoint{Robot: RobotID{Path: "b.yaml"}, Line: 3}.Matches(instr))
	require.False(t, Breakpoint{Line: 3}.Matches(nil))
}
