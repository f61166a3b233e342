package vm

import (
	"sync"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
)

// Binding selects the depth at which a declaration inserts its value.
type Binding uint8

const (
	// BindLocal inserts at the current stack depth.
	BindLocal Binding = iota
	// BindParameter inserts one level deeper than the current stack depth,
	// which is where the body of the called function runs.
	BindParameter
)

type slot struct {
	depth int
	gen   uint64
	value object.Object
}

// VariableDeclaration is a named variable slot. It keeps a stack of
// (depth, value) pairs so that recursive calls hold independent values of
// the same variable. Reads always see the most recently pushed value.
type VariableDeclaration struct {
	base
	name     string
	binding  Binding
	initial  Expression
	argument *Robot

	mu    sync.RWMutex
	stack []slot
	gen   uint64
	// gens of the slots pushed by Process and not yet closed
	open []uint64
}

// NewVariableDeclaration creates a declaration. A nil initializer
// initializes the variable to null.
func NewVariableDeclaration(name string, initial Expression) *VariableDeclaration {
	return &VariableDeclaration{name: name, initial: initial}
}

// NewParameter creates a function parameter declaration.
func NewParameter(name string, initial Expression) *VariableDeclaration {
	decl := NewVariableDeclaration(name, initial)
	decl.binding = BindParameter
	return decl
}

// Name returns the diagnostic name of the variable.
func (v *VariableDeclaration) Name() string {
	return v.name
}

// Binding returns the insertion policy of the declaration.
func (v *VariableDeclaration) Binding() Binding {
	return v.binding
}

// TakeArgumentFrom makes the declaration receive the call argument of robot
// instead of its initializer when the robot was called with one.
func (v *VariableDeclaration) TakeArgumentFrom(robot *Robot) {
	v.argument = robot
}

func (v *VariableDeclaration) insertionDepth(dbg Debugger) int {
	if v.binding == BindParameter {
		return dbg.StackDepth() + 1
	}
	return dbg.StackDepth()
}

func (v *VariableDeclaration) Process(dbg Debugger) (Flow, error) {
	gen := v.push(object.Null, v.insertionDepth(dbg))
	v.mu.Lock()
	v.open = append(v.open, gen)
	v.mu.Unlock()
	value, err := v.initialValue(dbg)
	if err != nil {
		return Flow{}, err
	}
	if err := v.Replace(value); err != nil {
		return Flow{}, err
	}
	return Resume(), nil
}

func (v *VariableDeclaration) initialValue(dbg Debugger) (object.Object, error) {
	if v.argument != nil {
		if arg, ok := v.argument.Argument(); ok {
			return arg, nil
		}
	}
	if v.initial == nil {
		return object.Null, nil
	}
	flow, err := v.initial.Process(dbg)
	if err != nil {
		return nil, err
	}
	return flow.Get(), nil
}

// Value returns the most recently pushed value, or null.
func (v *VariableDeclaration) Value() object.Object {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if len(v.stack) == 0 {
		return object.Null
	}
	return v.stack[len(v.stack)-1].value
}

// Replace swaps the most recent value for value, keeping its depth, and
// releases the old value.
func (v *VariableDeclaration) Replace(value object.Object) error {
	v.mu.Lock()
	if len(v.stack) == 0 {
		v.mu.Unlock()
		return errz.Namef("Reference to unknown variable '%s', could not assign value.", v.name)
	}
	top := &v.stack[len(v.stack)-1]
	old := top.value
	value.RegisterReference()
	top.value = value
	v.mu.Unlock()
	old.ReleaseReference()
	return nil
}

// Push adds a value at the given depth and registers a reference to it.
func (v *VariableDeclaration) Push(value object.Object, depth int) {
	v.push(value, depth)
}

func (v *VariableDeclaration) push(value object.Object, depth int) uint64 {
	value.RegisterReference()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gen++
	v.stack = append(v.stack, slot{depth: depth, gen: v.gen, value: value})
	return v.gen
}

// Release pops the most recent value and releases it. Releasing an empty
// declaration does nothing.
func (v *VariableDeclaration) Release() {
	v.mu.Lock()
	if len(v.stack) == 0 {
		v.mu.Unlock()
		return
	}
	top := v.pop()
	v.mu.Unlock()
	top.value.ReleaseReference()
}

// pop removes the top slot. The caller holds v.mu.
func (v *VariableDeclaration) pop() slot {
	top := v.stack[len(v.stack)-1]
	v.stack[len(v.stack)-1] = slot{}
	v.stack = v.stack[:len(v.stack)-1]
	if n := len(v.open); n > 0 && v.open[n-1] == top.gen {
		v.open = v.open[:n-1]
	}
	return top
}

// Peek returns the value pushed at exactly the given depth, scanning in push
// order. It returns nil if no such value exists.
func (v *VariableDeclaration) Peek(depth int) object.Object {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, s := range v.stack {
		if s.depth > depth {
			return nil
		}
		if s.depth == depth {
			return s.value
		}
	}
	return nil
}

// HasValue reports whether any value is pushed.
func (v *VariableDeclaration) HasValue() bool {
	return v.Depth() > 0
}

// Depth returns the number of pushed values.
func (v *VariableDeclaration) Depth() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.stack)
}

// Close releases the value pushed by the latest open Process call if it is
// still on top of the stack. Closing again does nothing.
func (v *VariableDeclaration) Close() error {
	v.mu.Lock()
	n := len(v.open)
	if n == 0 || len(v.stack) == 0 || v.stack[len(v.stack)-1].gen != v.open[n-1] {
		v.mu.Unlock()
		return nil
	}
	top := v.pop()
	v.mu.Unlock()
	top.value.ReleaseReference()
	return nil
}
