package vm

import (
	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
)

// ForeachInstruction runs its body once per element of a source value.
// Lists yield their elements with integer keys and objects their values
// with string keys. An atomic yields itself once, unless it carries an
// *object.Iter, in which case the sequence is iterated.
type ForeachInstruction struct {
	base
	source   Expression
	valueVar *VariableDeclaration
	keyVar   *VariableDeclaration
	body     *InstructionSet
}

// NewForeachInstruction creates a loop. keyVar may be nil.
func NewForeachInstruction(source Expression, valueVar, keyVar *VariableDeclaration, body *InstructionSet) *ForeachInstruction {
	f := &ForeachInstruction{source: source, valueVar: valueVar, keyVar: keyVar, body: body}
	body.SetParent(f)
	valueVar.SetHost(body)
	if keyVar != nil {
		keyVar.SetHost(body)
	}
	return f
}

func (f *ForeachInstruction) Process(dbg Debugger) (Flow, error) {
	sourceInstr := NewExpressionInstruction(f.source)
	sourceInstr.SetHost(f.Host())
	sourceInstr.SetPosition(f.Position())
	defer sourceInstr.Close()

	dbg.StartInstruction(sourceInstr)
	if dbg.ShouldStop() {
		dbg.EndInstruction(sourceInstr, Return(object.Null))
		return Return(object.Null), nil
	}
	flow, err := sourceInstr.Process(dbg)
	if err != nil {
		dbg.EndInstruction(sourceInstr, Return(object.Null))
		return Flow{}, err
	}
	dbg.EndInstruction(sourceInstr, flow)
	if !flow.Resumes() {
		return flow, nil
	}

	switch source := flow.Get().(type) {
	case *object.Atomic:
		if source.IsNull() {
			return Resume(), nil
		}
		if it, ok := object.GetMeta[*object.Iter](source); ok {
			return f.iterateSequence(dbg, it)
		}
		return f.iterate(dbg, func(int) (object.Object, object.Object, bool, error) {
			return object.NewInt(0), source, true, nil
		}, 1)
	case *object.List:
		mods := source.ModCount()
		return f.iterate(dbg, func(i int) (object.Object, object.Object, bool, error) {
			if source.ModCount() != mods {
				return nil, nil, false, errz.NewConcurrentModificationError(object.ErrConcurrentModification)
			}
			v, ok := source.Get(i)
			return object.NewInt(int64(i)), v, ok, nil
		}, -1)
	case *object.Map:
		mods := source.ModCount()
		keys := source.Keys()
		return f.iterate(dbg, func(i int) (object.Object, object.Object, bool, error) {
			if source.ModCount() != mods {
				return nil, nil, false, errz.NewConcurrentModificationError(object.ErrConcurrentModification)
			}
			if i >= len(keys) {
				return nil, nil, false, nil
			}
			v, ok := source.Get(keys[i])
			if !ok {
				return nil, nil, false, errz.NewConcurrentModificationError(object.ErrConcurrentModification)
			}
			return object.NewString(keys[i]), v, true, nil
		}, -1)
	}
	return Resume(), nil
}

func (f *ForeachInstruction) iterateSequence(dbg Debugger, it *object.Iter) (Flow, error) {
	return f.iterate(dbg, func(i int) (object.Object, object.Object, bool, error) {
		v, ok := it.Next()
		return object.NewInt(int64(i)), v, ok, nil
	}, -1)
}

// iterate calls next for increasing indexes until it reports false or limit
// iterations ran. A negative limit means no limit.
func (f *ForeachInstruction) iterate(dbg Debugger, next func(i int) (object.Object, object.Object, bool, error), limit int) (Flow, error) {
	for i := 0; limit < 0 || i < limit; i++ {
		if dbg.ShouldStop() {
			return Return(object.Null), nil
		}
		key, value, ok, err := next(i)
		if err != nil {
			return Flow{}, err
		}
		if !ok {
			break
		}
		flow, err := f.iteration(dbg, key, value)
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

func (f *ForeachInstruction) iteration(dbg Debugger, key, value object.Object) (Flow, error) {
	depth := dbg.StackDepth()
	f.valueVar.Push(value, depth)
	if f.keyVar != nil {
		f.keyVar.Push(key, depth)
	} else {
		key.RegisterReference()
		key.ReleaseReference()
	}

	flow, err := f.body.Process(dbg)
	if err == nil && flow.Returns() && flow.HasValue() {
		flow.Value.PreventDisposal()
		defer flow.Value.AllowDisposal()
	}
	f.valueVar.Release()
	if f.keyVar != nil {
		f.keyVar.Release()
	}
	return flow, err
}
