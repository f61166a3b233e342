package vm

import "github.com/deepnoodle-ai/robot/object"

// FunctionDeclaration is a named parameter list plus a body block. Processing
// the declaration does nothing; calls go through Run.
type FunctionDeclaration struct {
	base
	name   string
	params []*VariableDeclaration
	body   *InstructionSet
}

// NewFunctionDeclaration creates a function. The parameters should have been
// created with NewParameter.
func NewFunctionDeclaration(name string, params []*VariableDeclaration, body *InstructionSet) *FunctionDeclaration {
	fn := &FunctionDeclaration{name: name, params: params, body: body}
	body.SetParent(fn)
	for _, param := range params {
		param.SetHost(body)
	}
	return fn
}

// Name returns the function name.
func (f *FunctionDeclaration) Name() string {
	return f.name
}

// Params returns the parameter declarations.
func (f *FunctionDeclaration) Params() []*VariableDeclaration {
	return f.params
}

// Body returns the function body.
func (f *FunctionDeclaration) Body() *InstructionSet {
	return f.body
}

func (f *FunctionDeclaration) Process(dbg Debugger) (Flow, error) {
	return Resume(), nil
}

func (f *FunctionDeclaration) PreventDebugging() bool {
	return true
}

// Run calls the function. Every parameter is first initialized from its
// default, then overwritten by the positional arguments. Missing arguments
// keep their default and extra arguments are ignored. The result always
// resumes, carrying the returned value or null.
func (f *FunctionDeclaration) Run(dbg Debugger, args []object.Object) (Flow, error) {
	initialized := 0
	releaseParams := func() {
		for _, param := range f.params[:initialized] {
			param.Release()
		}
	}

	for _, param := range f.params {
		if _, err := param.Process(dbg); err != nil {
			// The failed declaration already pushed its slot.
			initialized++
			releaseParams()
			return Flow{}, err
		}
		initialized++
	}
	for i, arg := range args {
		if i >= len(f.params) {
			break
		}
		if err := f.params[i].Replace(arg); err != nil {
			releaseParams()
			return Flow{}, err
		}
	}

	dbg.StartFunction(f)
	result, err := f.body.Process(dbg)
	dbg.EndFunction(f)

	if err != nil {
		releaseParams()
		return Flow{}, err
	}
	if !result.HasValue() {
		releaseParams()
		return ResumeWith(object.Null), nil
	}
	result.Value.PreventDisposal()
	releaseParams()
	result.Value.AllowDisposal()
	return ResumeWith(result.Value), nil
}

// FunctionCall evaluates its arguments and runs a function.
type FunctionCall struct {
	fn   *FunctionDeclaration
	args []Expression
}

// NewFunctionCall creates a call expression.
func NewFunctionCall(fn *FunctionDeclaration, args []Expression) *FunctionCall {
	return &FunctionCall{fn: fn, args: args}
}

func (c *FunctionCall) Process(dbg Debugger) (Flow, error) {
	args := make([]object.Object, 0, len(c.args))
	release := func() {
		for _, arg := range args {
			arg.ReleaseReference()
		}
	}

	for _, expr := range c.args {
		flow, err := expr.Process(dbg)
		if err != nil {
			release()
			return Flow{}, err
		}
		value := flow.Get()
		value.RegisterReference()
		args = append(args, value)
		if dbg.ShouldStop() {
			release()
			return ReturnNothing(), nil
		}
	}

	result, err := c.fn.Run(dbg, args)
	if err != nil {
		release()
		return Flow{}, err
	}
	value := result.Get()
	value.PreventDisposal()
	release()
	value.AllowDisposal()
	return ResumeWith(value), nil
}
