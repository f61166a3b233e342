package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
)

// ConstructContext is what a construct sees of the run calling it.
type ConstructContext struct {
	context.Context
	Robot    RobotID
	Debugger Debugger
	Output   OutputHandler
}

// Construct is a leaf operation implemented in Go, such as a builtin.
type Construct interface {
	Name() string
	// Process computes the result from evaluated arguments. The arguments
	// stay referenced by the caller for the duration of the call.
	Process(ctx ConstructContext, args []object.Object) (object.Object, error)
}

// ConstructFunc adapts a function to the Construct interface.
type ConstructFunc func(ctx ConstructContext, args []object.Object) (object.Object, error)

type namedConstruct struct {
	name string
	fn   ConstructFunc
}

// NewConstruct creates a construct from a function.
func NewConstruct(name string, fn ConstructFunc) Construct {
	return &namedConstruct{name: name, fn: fn}
}

func (c *namedConstruct) Name() string {
	return c.name
}

func (c *namedConstruct) Process(ctx ConstructContext, args []object.Object) (object.Object, error) {
	return c.fn(ctx, args)
}

// ConstructCall evaluates arguments and invokes a construct. Errors raised
// while evaluating an argument or by the construct itself are passed to the
// debugger; when it absorbs them the call yields null.
type ConstructCall struct {
	robot     *Robot
	construct Construct
	args      []Expression
}

// NewConstructCall creates a call. robot is the robot the call belongs to
// and may be nil in tests.
func NewConstructCall(robot *Robot, construct Construct, args []Expression) *ConstructCall {
	return &ConstructCall{robot: robot, construct: construct, args: args}
}

// Construct returns the called construct.
func (c *ConstructCall) Construct() Construct {
	return c.construct
}

func (c *ConstructCall) Process(dbg Debugger) (Flow, error) {
	args := make([]object.Object, 0, len(c.args))
	release := func() {
		for _, arg := range args {
			arg.ReleaseReference()
		}
	}

	for _, expr := range c.args {
		value := object.Object(object.Null)
		flow, err := expr.Process(dbg)
		if err != nil {
			if herr := handleInExpression(dbg, err); herr != nil {
				release()
				return Flow{}, herr
			}
		} else {
			value = flow.Get()
		}
		value.RegisterReference()
		args = append(args, value)
		if dbg.ShouldStop() {
			release()
			return ReturnNothing(), nil
		}
	}

	if dbg.ShouldStop() {
		release()
		return ReturnNothing(), nil
	}

	result, err := c.invoke(dbg, args)
	if err != nil {
		release()
		if herr := handleInExpression(dbg, err); herr != nil {
			return Flow{}, herr
		}
		return ResumeWith(object.Null), nil
	}
	if result == nil {
		result = object.Null
	}
	result.PreventDisposal()
	release()
	result.AllowDisposal()
	return ResumeWith(result), nil
}

func (c *ConstructCall) invoke(dbg Debugger, args []object.Object) (result object.Object, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errz.Runtimef("%s: %v", c.construct.Name(), r)
		}
	}()
	result, err = c.construct.Process(c.context(dbg), args)
	if errors.Is(err, object.ErrConcurrentModification) {
		err = errz.NewConcurrentModificationError(err)
	}
	return result, err
}

// handleInExpression passes an error raised inside an expression to the
// debugger, unless an inner expression already did. A rethrown error comes
// back marked so enclosing blocks do not handle it again.
func handleInExpression(dbg Debugger, err error) error {
	var p *propagated
	if errors.As(err, &p) {
		return err
	}
	if herr := dbg.Handle(err); herr != nil {
		return &propagated{err: herr}
	}
	return nil
}

func (c *ConstructCall) context(dbg Debugger) ConstructContext {
	ctx := ConstructContext{Context: context.Background(), Debugger: dbg}
	if c.robot != nil {
		ctx.Context = c.robot.Context()
		ctx.Robot = c.robot.ID()
		ctx.Output = c.robot.Output()
	}
	return ctx
}

func (c *ConstructCall) String() string {
	return fmt.Sprintf("%s(...)", c.construct.Name())
}
