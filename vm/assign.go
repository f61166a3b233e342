package vm

import (
	"math"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
)

// Assign writes a value into a variable, or into an element nested inside
// the variable's list or object value. The path is given outermost first:
// x[1]["name"] has the path [1, "name"].
type Assign struct {
	base
	target *VariableDeclaration
	path   []Expression
	value  Expression
}

// NewAssign creates an assignment.
func NewAssign(target *VariableDeclaration, path []Expression, value Expression) *Assign {
	return &Assign{target: target, path: path, value: value}
}

func (a *Assign) Process(dbg Debugger) (Flow, error) {
	if _, err := a.ProcessWithValue(dbg); err != nil {
		return Flow{}, err
	}
	return ResumeWith(object.Null), nil
}

// ProcessWithValue performs the assignment and returns the assigned value.
func (a *Assign) ProcessWithValue(dbg Debugger) (object.Object, error) {
	flow, err := a.value.Process(dbg)
	if err != nil {
		return nil, err
	}
	value := flow.Get()

	// A stop request or an absorbed error cancels the write.
	if dbg.ShouldStop() {
		return object.Null, nil
	}

	if len(a.path) == 0 {
		if err := a.target.Replace(value); err != nil {
			return nil, err
		}
		return value, nil
	}

	value.RegisterReference()
	defer value.ReleaseReference()

	var werr error
	switch root := a.target.Value().(type) {
	case *object.List:
		werr = a.assignList(dbg, root, 0, value)
	case *object.Map:
		werr = a.assignMap(dbg, root, 0, value)
	default:
		werr = errz.Typef("Cannot assign to atomic variable using a path.")
	}
	if werr != nil {
		return nil, werr
	}
	return value, nil
}

func (a *Assign) key(dbg Debugger, i int) (object.Object, error) {
	flow, err := a.path[i].Process(dbg)
	if err != nil {
		return nil, err
	}
	return flow.Get(), nil
}

func (a *Assign) assignList(dbg Debugger, target *object.List, i int, value object.Object) error {
	keyValue, err := a.key(dbg, i)
	if err != nil {
		return err
	}
	keyValue.RegisterReference()
	number := object.ToNumber(keyValue)
	keyValue.ReleaseReference()

	if math.IsNaN(number) {
		return errz.Valuef("A list cannot have named elements.")
	}
	if math.IsInf(number, 0) {
		return errz.Valuef("A list cannot have infinite elements.")
	}
	index := int(number)

	if i == len(a.path)-1 {
		if index < 0 {
			return errz.Valuef("Cannot dereference negative array index.")
		}
		if prev, ok := target.Set(index, value); ok {
			prev.ReleaseReference()
			return nil
		}
		for target.Len() < index {
			target.Append(object.Null)
		}
		target.Append(value)
		return nil
	}

	current, ok := target.Get(index)
	if !ok {
		return errz.Valuef("Illegal value for list index: %d", index)
	}
	return a.moveOn(dbg, current, i, value)
}

func (a *Assign) assignMap(dbg Debugger, target *object.Map, i int, value object.Object) error {
	keyValue, err := a.key(dbg, i)
	if err != nil {
		return err
	}
	keyValue.RegisterReference()
	key := object.ToString(keyValue)
	keyValue.ReleaseReference()

	if i == len(a.path)-1 {
		if prev, existed := target.Put(key, value); existed {
			prev.ReleaseReference()
		}
		return nil
	}

	current, ok := target.Get(key)
	if !ok {
		return errz.Namef("Object '%s' does not contain any element called '%s'.", a.target.Name(), key)
	}
	return a.moveOn(dbg, current, i, value)
}

func (a *Assign) moveOn(dbg Debugger, current object.Object, i int, value object.Object) error {
	current.RegisterReference()
	defer current.ReleaseReference()
	switch current := current.(type) {
	case *object.List:
		return a.assignList(dbg, current, i+1, value)
	case *object.Map:
		return a.assignMap(dbg, current, i+1, value)
	default:
		return errz.Typef("Can only assign to children of OBJECT and LIST types.")
	}
}
