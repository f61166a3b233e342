package program

import "github.com/deepnoodle-ai/robot/vm"

// Option describes a function used to configure a Loader.
type Option func(*Loader)

// WithConstructs makes constructs available to documents. This option is
// additive, so multiple WithConstructs options may be supplied. If the same
// name is supplied multiple times, the last supplied construct is used.
func WithConstructs(constructs map[string]vm.Construct) Option {
	return func(l *Loader) {
		for name, c := range constructs {
			l.constructs[name] = c
		}
	}
}

// WithConstruct supplies a single construct under its own name.
func WithConstruct(c vm.Construct) Option {
	return func(l *Loader) {
		l.constructs[c.Name()] = c
	}
}

// WithoutConstruct removes a construct, including a default one. Unknown
// names are ignored.
func WithoutConstruct(name string) Option {
	return func(l *Loader) {
		delete(l.constructs, name)
	}
}

// WithBaseDir sets the directory relative paths are resolved against when
// there is no calling robot to resolve them from.
func WithBaseDir(dir string) Option {
	return func(l *Loader) {
		l.baseDir = dir
	}
}

// WithDebugger attaches a debugger to loaded robots and reports their
// variable declarations to it.
func WithDebugger(dbg vm.Debugger) Option {
	return func(l *Loader) {
		l.debugger = dbg
	}
}
