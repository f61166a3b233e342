// Package op defines the operators available to instruction trees and
// evaluates them on values.
package op

import "fmt"

// BinaryOpType describes a type of binary operation, as in an operation that
// takes two operands. For example, addition, subtraction, multiplication, etc.
type BinaryOpType uint16

const (
	Add      BinaryOpType = 1
	Subtract BinaryOpType = 2
	Multiply BinaryOpType = 3
	Divide   BinaryOpType = 4
	Modulo   BinaryOpType = 5
	And      BinaryOpType = 6
	Or       BinaryOpType = 7
	Power    BinaryOpType = 9
	Concat   BinaryOpType = 14
)

// String returns a string representation of the binary operation.
// For example "+" for addition.
func (bop BinaryOpType) String() string {
	switch bop {
	case Add:
		return "+"
	case Subtract:
		return "-"
	case Multiply:
		return "*"
	case Divide:
		return "/"
	case Modulo:
		return "%"
	case And:
		return "&&"
	case Or:
		return "||"
	case Power:
		return "^"
	case Concat:
		return "::"
	default:
		return ""
	}
}

// ShortCircuits reports whether the right operand may be skipped depending
// on the left operand.
func (bop BinaryOpType) ShortCircuits() bool {
	return bop == And || bop == Or
}

// CompareOpType describes a type of comparison operation. For example, less
// than, greater than, equal, etc.
type CompareOpType uint16

const (
	LessThan           CompareOpType = 1
	LessThanOrEqual    CompareOpType = 2
	Equal              CompareOpType = 3
	NotEqual           CompareOpType = 4
	GreaterThan        CompareOpType = 5
	GreaterThanOrEqual CompareOpType = 6
)

// String returns a string representation of the comparison operation.
// For example "<" for less than.
func (cop CompareOpType) String() string {
	switch cop {
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	default:
		return ""
	}
}

// UnaryOpType describes an operation on a single operand.
type UnaryOpType uint16

const (
	Not    UnaryOpType = 1
	Negate UnaryOpType = 2
)

func (uop UnaryOpType) String() string {
	switch uop {
	case Not:
		return "!"
	case Negate:
		return "-"
	default:
		return ""
	}
}

// Info describes an operator symbol.
type Info struct {
	Symbol  string
	Binary  BinaryOpType
	Compare CompareOpType
	Unary   UnaryOpType
}

// IsCompare reports whether the symbol names a comparison.
func (i Info) IsCompare() bool {
	return i.Compare != 0
}

// IsUnary reports whether the symbol names a unary operation.
func (i Info) IsUnary() bool {
	return i.Unary != 0
}

var infos = map[string]Info{}

func init() {
	for _, b := range []BinaryOpType{Add, Subtract, Multiply, Divide, Modulo, And, Or, Power, Concat} {
		infos[b.String()] = Info{Symbol: b.String(), Binary: b}
	}
	for _, c := range []CompareOpType{LessThan, LessThanOrEqual, Equal, NotEqual, GreaterThan, GreaterThanOrEqual} {
		infos[c.String()] = Info{Symbol: c.String(), Compare: c}
	}
	infos["!"] = Info{Symbol: "!", Unary: Not}
	infos["neg"] = Info{Symbol: "neg", Unary: Negate}
}

// Lookup returns information about the given operator symbol.
func Lookup(symbol string) (Info, error) {
	info, ok := infos[symbol]
	if !ok {
		return Info{}, fmt.Errorf("unknown operator %q", symbol)
	}
	return info, nil
}
