package object

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// AtomicKind identifies the scalar behavior of an atomic value.
type AtomicKind int

const (
	KindNull AtomicKind = iota
	KindBool
	KindNumber
	KindString
)

func (k AtomicKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Null is the shared null value. It is never disposed.
var Null = &Atomic{lifecycle: lifecycle{permanent: true}, kind: KindNull}

// Atomic is a scalar value: null, a boolean, a number or a string.
type Atomic struct {
	lifecycle
	kind AtomicKind
	b    bool
	n    float64
	s    string
}

// NewNumber creates a numeric atomic.
func NewNumber(value float64) *Atomic {
	return &Atomic{kind: KindNumber, n: value}
}

// NewInt creates a numeric atomic from an integer.
func NewInt(value int64) *Atomic {
	return NewNumber(float64(value))
}

// NewString creates a string atomic.
func NewString(value string) *Atomic {
	return &Atomic{kind: KindString, s: value}
}

// NewBool creates a boolean atomic.
func NewBool(value bool) *Atomic {
	return &Atomic{kind: KindBool, b: value}
}

func (a *Atomic) Type() Type {
	return ATOMIC
}

// Kind returns the scalar behavior of the value.
func (a *Atomic) Kind() AtomicKind {
	return a.kind
}

// IsNull reports whether the value is null.
func (a *Atomic) IsNull() bool {
	return a.kind == KindNull
}

// Bool returns the boolean coercion of the value.
func (a *Atomic) Bool() bool {
	return a.IsTruthy()
}

// Number returns the numeric coercion of the value. Strings that do not
// parse and null coerce to NaN.
func (a *Atomic) Number() float64 {
	switch a.kind {
	case KindNumber:
		return a.n
	case KindBool:
		if a.b {
			return 1
		}
		return 0
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(a.s), 64)
		if err != nil {
			return math.NaN()
		}
		return n
	default:
		return math.NaN()
	}
}

// Str returns the string coercion of the value.
func (a *Atomic) Str() string {
	switch a.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(a.b)
	case KindNumber:
		return FormatNumber(a.n)
	default:
		return a.s
	}
}

func (a *Atomic) String() string {
	return a.Str()
}

func (a *Atomic) Inspect() string {
	if a.kind == KindString {
		return strconv.Quote(a.s)
	}
	return a.Str()
}

func (a *Atomic) Interface() any {
	switch a.kind {
	case KindBool:
		return a.b
	case KindNumber:
		return a.n
	case KindString:
		return a.s
	default:
		return nil
	}
}

func (a *Atomic) IsTruthy() bool {
	switch a.kind {
	case KindBool:
		return a.b
	case KindNumber:
		return a.n != 0 && !math.IsNaN(a.n)
	case KindString:
		return a.s != "" && a.s != "false"
	default:
		return false
	}
}

// Equals compares atomics by their string form first and by their numeric
// value second, when both sides are numeric.
func (a *Atomic) Equals(other Object) bool {
	if Object(a) == other {
		return true
	}
	o, ok := other.(*Atomic)
	if !ok {
		return false
	}
	if a.IsNull() != o.IsNull() {
		return false
	}
	if a.Str() == o.Str() {
		return true
	}
	x, y := a.Number(), o.Number()
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	return x == y
}

func (a *Atomic) MarshalJSON() ([]byte, error) {
	if a.kind == KindNumber && (math.IsNaN(a.n) || math.IsInf(a.n, 0)) {
		return json.Marshal(FormatNumber(a.n))
	}
	return json.Marshal(a.Interface())
}

// FormatNumber renders a number the way the interpreter prints it: integral
// values have no fraction.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}
