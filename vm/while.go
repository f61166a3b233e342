package vm

import "github.com/deepnoodle-ai/robot/object"

// WhileInstruction runs its body as long as the condition is truthy. The
// condition is reported to the debugger on every check.
type WhileInstruction struct {
	base
	cond *conditionInstruction
	body *InstructionSet
}

// NewWhileInstruction creates a loop.
func NewWhileInstruction(condition Expression, body *InstructionSet) *WhileInstruction {
	w := &WhileInstruction{cond: newCondition(condition), body: body}
	body.SetParent(w)
	return w
}

func (w *WhileInstruction) SetHost(host *InstructionSet) {
	w.base.SetHost(host)
	w.cond.SetHost(host)
}

func (w *WhileInstruction) SetPosition(pos Position) {
	w.base.SetPosition(pos)
	w.cond.SetPosition(pos)
}

func (w *WhileInstruction) Process(dbg Debugger) (Flow, error) {
	for {
		ok, err := w.check(dbg)
		if err != nil {
			return Flow{}, err
		}
		if !ok || dbg.ShouldStop() {
			break
		}
		flow, err := w.body.Process(dbg)
		if err != nil {
			return Flow{}, err
		}
		if flow.Returns() {
			return flow, nil
		}
		if flow.Breaks() {
			break
		}
	}
	return Resume(), nil
}

func (w *WhileInstruction) check(dbg Debugger) (bool, error) {
	dbg.StartInstruction(w.cond)
	if dbg.ShouldStop() {
		dbg.EndInstruction(w.cond, Return(object.Null))
		return false, nil
	}
	flow, err := w.cond.Process(dbg)
	if err != nil {
		dbg.EndInstruction(w.cond, Return(object.Null))
		return false, err
	}
	dbg.EndInstruction(w.cond, flow)
	return flow.Resumes() && w.cond.truthy, nil
}
