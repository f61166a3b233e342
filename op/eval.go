package op

import (
	"math"
	"strings"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
)

// Binary applies a binary operation. The result is a new value with no
// registered holders.
func Binary(bop BinaryOpType, left, right object.Object) (object.Object, error) {
	switch bop {
	case Add:
		return add(left, right), nil
	case Concat:
		return object.NewString(object.ToString(left) + object.ToString(right)), nil
	case And:
		return object.NewBool(object.ToBool(left) && object.ToBool(right)), nil
	case Or:
		return object.NewBool(object.ToBool(left) || object.ToBool(right)), nil
	}
	x, y := object.ToNumber(left), object.ToNumber(right)
	switch bop {
	case Subtract:
		return object.NewNumber(x - y), nil
	case Multiply:
		return object.NewNumber(x * y), nil
	case Divide:
		if y == 0 {
			return nil, errz.Valuef("division by zero")
		}
		return object.NewNumber(x / y), nil
	case Modulo:
		if y == 0 {
			return nil, errz.Valuef("division by zero")
		}
		return object.NewNumber(math.Mod(x, y)), nil
	case Power:
		return object.NewNumber(math.Pow(x, y)), nil
	}
	return nil, errz.Runtimef("unsupported operation: %s", bop)
}

// add sums numbers, concatenates lists and merges objects.
func add(left, right object.Object) object.Object {
	switch l := left.(type) {
	case *object.List:
		if r, ok := right.(*object.List); ok {
			return object.NewList(append(l.Items(), r.Items()...)...)
		}
	case *object.Map:
		if r, ok := right.(*object.Map); ok {
			out := object.NewMap()
			for _, src := range []*object.Map{l, r} {
				for _, k := range src.Keys() {
					v, _ := src.Get(k)
					if prev, existed := out.Put(k, v); existed {
						prev.ReleaseReference()
					}
				}
			}
			return out
		}
	}
	return object.NewNumber(object.ToNumber(left) + object.ToNumber(right))
}

// Compare applies a comparison. Ordering compares numerically when both sides
// are numeric and by string otherwise.
func Compare(cop CompareOpType, left, right object.Object) (object.Object, error) {
	switch cop {
	case Equal:
		return object.NewBool(left.Equals(right)), nil
	case NotEqual:
		return object.NewBool(!left.Equals(right)), nil
	}
	c := order(left, right)
	switch cop {
	case LessThan:
		return object.NewBool(c < 0), nil
	case LessThanOrEqual:
		return object.NewBool(c <= 0), nil
	case GreaterThan:
		return object.NewBool(c > 0), nil
	case GreaterThanOrEqual:
		return object.NewBool(c >= 0), nil
	}
	return nil, errz.Runtimef("unsupported comparison: %s", cop)
}

func order(left, right object.Object) int {
	x, y := object.ToNumber(left), object.ToNumber(right)
	if !math.IsNaN(x) && !math.IsNaN(y) {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(object.ToString(left), object.ToString(right))
}

// Unary applies a unary operation.
func Unary(uop UnaryOpType, operand object.Object) (object.Object, error) {
	switch uop {
	case Not:
		return object.NewBool(!object.ToBool(operand)), nil
	case Negate:
		return object.NewNumber(-object.ToNumber(operand)), nil
	}
	return nil, errz.Runtimef("unsupported operation: %s", uop)
}
