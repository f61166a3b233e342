package vm

import "sync"

// DebugInfo lists the variable declarations of compiled robots so debuggers
// can show them while a robot is paused.
type DebugInfo struct {
	mu        sync.RWMutex
	variables []*VariableDeclaration
	seen      map[*VariableDeclaration]bool
}

// NewDebugInfo returns an empty registry.
func NewDebugInfo() *DebugInfo {
	return &DebugInfo{seen: map[*VariableDeclaration]bool{}}
}

// AddVariable registers a declaration.
func (d *DebugInfo) AddVariable(decl *VariableDeclaration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[*VariableDeclaration]bool{}
	}
	if d.seen[decl] {
		return
	}
	d.seen[decl] = true
	d.variables = append(d.variables, decl)
}

// Add merges another registry into this one.
func (d *DebugInfo) Add(other *DebugInfo) {
	if other == nil || other == d {
		return
	}
	for _, decl := range other.Variables() {
		d.AddVariable(decl)
	}
}

// Variables returns the registered declarations in registration order.
func (d *DebugInfo) Variables() []*VariableDeclaration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*VariableDeclaration, len(d.variables))
	copy(out, d.variables)
	return out
}

// Lookup returns the declarations with the given name.
func (d *DebugInfo) Lookup(name string) []*VariableDeclaration {
	var out []*VariableDeclaration
	for _, decl := range d.Variables() {
		if decl.Name() == name {
			out = append(out, decl)
		}
	}
	return out
}
