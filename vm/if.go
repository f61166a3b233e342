package vm

// ConditionalBranch is one condition and body of an if chain.
type ConditionalBranch struct {
	Condition Expression
	Body      *InstructionSet
	// Position of the condition. Defaults to the position of the if.
	Position Position
}

type branch struct {
	cond  *conditionInstruction
	block *InstructionSet
	body  *InstructionSet
}

// IfInstruction runs the body of the first branch whose condition is truthy,
// or the else body when none is.
type IfInstruction struct {
	base
	branches []branch
	elseBody *InstructionSet
}

// NewIfInstruction creates an if chain. elseBody may be nil.
func NewIfInstruction(branches []ConditionalBranch, elseBody *InstructionSet) *IfInstruction {
	instr := &IfInstruction{elseBody: elseBody}
	for _, b := range branches {
		cond := newCondition(b.Condition)
		cond.SetPosition(b.Position)
		block := NewInstructionSet(nil)
		block.SetPosition(b.Position)
		block.Add(cond)
		block.SetParent(instr)
		if b.Body != nil {
			b.Body.SetParent(instr)
		}
		instr.branches = append(instr.branches, branch{cond: cond, block: block, body: b.Body})
	}
	if elseBody != nil {
		elseBody.SetParent(instr)
	}
	return instr
}

// SetPosition sets the position of the if and of conditions that have none.
func (i *IfInstruction) SetPosition(pos Position) {
	i.base.SetPosition(pos)
	for _, b := range i.branches {
		if b.cond.pos.Line == 0 {
			b.cond.SetPosition(pos)
			b.block.SetPosition(pos)
		}
	}
}

func (i *IfInstruction) Process(dbg Debugger) (Flow, error) {
	for _, b := range i.branches {
		flow, err := b.block.Process(dbg)
		if err != nil {
			return Flow{}, err
		}
		if !flow.Resumes() {
			return flow, nil
		}
		if !b.cond.truthy {
			continue
		}
		if b.body == nil {
			return Resume(), nil
		}
		return b.body.Process(dbg)
	}
	if i.elseBody != nil {
		return i.elseBody.Process(dbg)
	}
	return Resume(), nil
}
