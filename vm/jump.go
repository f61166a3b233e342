package vm

import "github.com/deepnoodle-ai/robot/object"

// ReturnInstruction leaves the current function or robot, optionally with
// a value.
type ReturnInstruction struct {
	base
	value Expression
}

// NewReturnInstruction creates a return. value may be nil.
func NewReturnInstruction(value Expression) *ReturnInstruction {
	return &ReturnInstruction{value: value}
}

func (r *ReturnInstruction) Process(dbg Debugger) (Flow, error) {
	if r.value == nil {
		return Return(object.Null), nil
	}
	flow, err := r.value.Process(dbg)
	if err != nil {
		return Flow{}, err
	}
	if !flow.Resumes() {
		return flow, nil
	}
	return Return(flow.Get()), nil
}

// BreakInstruction leaves the innermost loop.
type BreakInstruction struct {
	base
}

func NewBreakInstruction() *BreakInstruction {
	return &BreakInstruction{}
}

func (b *BreakInstruction) Process(dbg Debugger) (Flow, error) {
	return Break(), nil
}

// ContinueInstruction skips to the next iteration of the innermost loop.
type ContinueInstruction struct {
	base
}

func NewContinueInstruction() *ContinueInstruction {
	return &ContinueInstruction{}
}

func (c *ContinueInstruction) Process(dbg Debugger) (Flow, error) {
	return Continue(), nil
}
