package vm

// conditionInstruction evaluates a condition and remembers its truthiness.
// It releases the evaluated value right away, so closing it is a no-op.
type conditionInstruction struct {
	base
	expr   Expression
	truthy bool
}

func newCondition(expr Expression) *conditionInstruction {
	return &conditionInstruction{expr: expr}
}

func (c *conditionInstruction) Process(dbg Debugger) (Flow, error) {
	c.truthy = false
	flow, err := c.expr.Process(dbg)
	if err != nil {
		return Flow{}, err
	}
	if !flow.Resumes() {
		return flow, nil
	}
	value := flow.Get()
	value.RegisterReference()
	c.truthy = value.IsTruthy()
	value.ReleaseReference()
	return Resume(), nil
}
