package vm

import (
	"sync"

	"github.com/deepnoodle-ai/robot/object"
)

// ExpressionInstruction evaluates an expression as a statement. It holds a
// reference to the produced value until it is closed.
type ExpressionInstruction struct {
	base
	expr Expression

	mu     sync.Mutex
	values []object.Object
}

// NewExpressionInstruction wraps expr.
func NewExpressionInstruction(expr Expression) *ExpressionInstruction {
	return &ExpressionInstruction{expr: expr}
}

// Expression returns the wrapped expression.
func (e *ExpressionInstruction) Expression() Expression {
	return e.expr
}

func (e *ExpressionInstruction) Process(dbg Debugger) (Flow, error) {
	flow, err := e.expr.Process(dbg)
	if err != nil {
		return Flow{}, err
	}
	if !flow.Resumes() {
		return flow, nil
	}
	value := flow.Get()
	value.RegisterReference()
	e.mu.Lock()
	e.values = append(e.values, value)
	e.mu.Unlock()
	return ResumeWith(value), nil
}

// Close releases the values produced since the last close.
func (e *ExpressionInstruction) Close() error {
	e.mu.Lock()
	values := e.values
	e.values = nil
	e.mu.Unlock()
	for _, v := range values {
		v.ReleaseReference()
	}
	return nil
}
