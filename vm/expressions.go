package vm

import (
	"math"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
	"github.com/deepnoodle-ai/robot/op"
)

// Literal is a constant value. It holds one reference to the value for the
// lifetime of the tree.
type Literal struct {
	value object.Object
}

// NewLiteral creates a constant expression.
func NewLiteral(value object.Object) *Literal {
	value.RegisterReference()
	return &Literal{value: value}
}

func (l *Literal) Process(dbg Debugger) (Flow, error) {
	return ResumeWith(l.value), nil
}

// Value returns the constant.
func (l *Literal) Value() object.Object {
	return l.value
}

// VariableRef reads the current value of a variable.
type VariableRef struct {
	target *VariableDeclaration
}

// NewVariableRef creates a reference to decl.
func NewVariableRef(decl *VariableDeclaration) *VariableRef {
	return &VariableRef{target: decl}
}

func (r *VariableRef) Process(dbg Debugger) (Flow, error) {
	return ResumeWith(r.target.Value()), nil
}

// Target returns the referenced declaration.
func (r *VariableRef) Target() *VariableDeclaration {
	return r.target
}

// ListExpression builds a new list from element expressions.
type ListExpression struct {
	items []Expression
}

// NewListExpression creates a list constructor.
func NewListExpression(items []Expression) *ListExpression {
	return &ListExpression{items: items}
}

func (l *ListExpression) Process(dbg Debugger) (Flow, error) {
	list := object.NewList()
	for _, expr := range l.items {
		flow, err := expr.Process(dbg)
		if err == nil && !flow.Resumes() {
			_ = list.Close()
			return flow, nil
		}
		if err != nil {
			_ = list.Close()
			return Flow{}, err
		}
		list.Append(flow.Get())
	}
	return ResumeWith(list), nil
}

// MapEntry is one key/value pair of a MapExpression.
type MapEntry struct {
	Key   Expression
	Value Expression
}

// MapExpression builds a new object from entry expressions. Keys are
// converted to strings. A repeated key keeps its first position and its
// last value.
type MapExpression struct {
	entries []MapEntry
}

// NewMapExpression creates an object constructor.
func NewMapExpression(entries []MapEntry) *MapExpression {
	return &MapExpression{entries: entries}
}

func (m *MapExpression) Process(dbg Debugger) (Flow, error) {
	out := object.NewMap()
	fail := func(flow Flow, err error) (Flow, error) {
		_ = out.Close()
		return flow, err
	}
	for _, entry := range m.entries {
		keyFlow, err := entry.Key.Process(dbg)
		if err != nil {
			return fail(Flow{}, err)
		}
		if !keyFlow.Resumes() {
			return fail(keyFlow, nil)
		}
		keyValue := keyFlow.Get()
		keyValue.RegisterReference()
		key := object.ToString(keyValue)
		keyValue.ReleaseReference()

		valueFlow, err := entry.Value.Process(dbg)
		if err != nil {
			return fail(Flow{}, err)
		}
		if !valueFlow.Resumes() {
			return fail(valueFlow, nil)
		}
		if prev, existed := out.Put(key, valueFlow.Get()); existed {
			prev.ReleaseReference()
		}
	}
	return ResumeWith(out), nil
}

// FromList reads an element of a list or object. A non-atomic or null index
// yields null, as does a missing object key.
type FromList struct {
	source Expression
	index  Expression
}

// NewFromList creates an element access.
func NewFromList(source, index Expression) *FromList {
	return &FromList{source: source, index: index}
}

func (f *FromList) Process(dbg Debugger) (Flow, error) {
	sourceFlow, err := f.source.Process(dbg)
	if err != nil {
		return Flow{}, err
	}
	if !sourceFlow.Resumes() {
		return sourceFlow, nil
	}
	source := sourceFlow.Get()
	source.RegisterReference()

	indexFlow, err := f.index.Process(dbg)
	if err != nil || !indexFlow.Resumes() {
		source.ReleaseReference()
		return indexFlow, err
	}
	index := indexFlow.Get()
	index.RegisterReference()

	result, err := element(source, index)
	if err != nil {
		index.ReleaseReference()
		source.ReleaseReference()
		return Flow{}, err
	}
	// The element must outlive the disposal of a temporary container.
	result.PreventDisposal()
	index.ReleaseReference()
	source.ReleaseReference()
	result.AllowDisposal()
	return ResumeWith(result), nil
}

func element(source, index object.Object) (object.Object, error) {
	key, ok := index.(*object.Atomic)
	if !ok || key.IsNull() {
		return object.Null, nil
	}
	switch source := source.(type) {
	case *object.List:
		number := key.Number()
		if math.IsNaN(number) {
			return nil, errz.Valuef("The list does not contain any element called '%s' (a list does not have named elements).", key.Str())
		}
		i := int(number)
		value, ok := source.Get(i)
		if !ok {
			return nil, errz.Valuef("Illegal value for list index: %d", i)
		}
		return value, nil
	case *object.Map:
		value, ok := source.Get(key.Str())
		if !ok {
			return object.Null, nil
		}
		return value, nil
	default:
		return nil, errz.Typef("Cannot get member of ATOMIC value.")
	}
}

// BinaryOperation applies a binary or comparison operator. And and Or
// evaluate their right operand only when needed.
type BinaryOperation struct {
	info  op.Info
	left  Expression
	right Expression
}

// NewBinaryOperation creates an operation for the operator symbol.
func NewBinaryOperation(symbol string, left, right Expression) (*BinaryOperation, error) {
	info, err := op.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	if info.IsUnary() {
		return nil, errz.Valuef("operator %q is not a binary operator", symbol)
	}
	return &BinaryOperation{info: info, left: left, right: right}, nil
}

func (b *BinaryOperation) Process(dbg Debugger) (Flow, error) {
	leftFlow, err := b.left.Process(dbg)
	if err != nil {
		return Flow{}, err
	}
	if !leftFlow.Resumes() {
		return leftFlow, nil
	}
	left := leftFlow.Get()
	left.RegisterReference()
	defer left.ReleaseReference()

	if !b.info.IsCompare() && b.info.Binary.ShortCircuits() {
		truthy := left.IsTruthy()
		if (b.info.Binary == op.And && !truthy) || (b.info.Binary == op.Or && truthy) {
			return ResumeWith(object.NewBool(truthy)), nil
		}
	}

	rightFlow, err := b.right.Process(dbg)
	if err != nil {
		return Flow{}, err
	}
	if !rightFlow.Resumes() {
		return rightFlow, nil
	}
	right := rightFlow.Get()
	right.RegisterReference()
	defer right.ReleaseReference()

	var result object.Object
	if b.info.IsCompare() {
		result, err = op.Compare(b.info.Compare, left, right)
	} else {
		result, err = op.Binary(b.info.Binary, left, right)
	}
	if err != nil {
		return Flow{}, err
	}
	return ResumeWith(result), nil
}

// UnaryOperation applies a unary operator.
type UnaryOperation struct {
	uop     op.UnaryOpType
	operand Expression
}

// NewUnaryOperation creates a unary operation.
func NewUnaryOperation(uop op.UnaryOpType, operand Expression) *UnaryOperation {
	return &UnaryOperation{uop: uop, operand: operand}
}

func (u *UnaryOperation) Process(dbg Debugger) (Flow, error) {
	flow, err := u.operand.Process(dbg)
	if err != nil {
		return Flow{}, err
	}
	if !flow.Resumes() {
		return flow, nil
	}
	operand := flow.Get()
	operand.RegisterReference()
	defer operand.ReleaseReference()
	result, err := op.Unary(u.uop, operand)
	if err != nil {
		return Flow{}, err
	}
	return ResumeWith(result), nil
}
