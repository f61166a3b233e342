package vm

import "github.com/deepnoodle-ai/robot/object"

// FlowKind tells an enclosing block how to continue after an instruction.
type FlowKind uint8

const (
	// FlowResume continues with the next instruction.
	FlowResume FlowKind = iota
	// FlowReturn leaves every block up to the enclosing function or robot.
	FlowReturn
	// FlowBreak leaves the innermost loop.
	FlowBreak
	// FlowContinue ends the current loop iteration.
	FlowContinue
)

func (k FlowKind) String() string {
	switch k {
	case FlowResume:
		return "resume"
	case FlowReturn:
		return "return"
	case FlowBreak:
		return "break"
	case FlowContinue:
		return "continue"
	default:
		return "unknown"
	}
}

// Flow is the outcome of processing an instruction or expression.
type Flow struct {
	Kind  FlowKind
	Value object.Object
}

// Resume continues without a value.
func Resume() Flow {
	return Flow{Kind: FlowResume}
}

// ResumeWith continues and carries a value.
func ResumeWith(value object.Object) Flow {
	return Flow{Kind: FlowResume, Value: value}
}

// Return leaves the current function with a value.
func Return(value object.Object) Flow {
	return Flow{Kind: FlowReturn, Value: value}
}

// ReturnNothing leaves the current function without a value.
func ReturnNothing() Flow {
	return Flow{Kind: FlowReturn}
}

// Break leaves the innermost loop.
func Break() Flow {
	return Flow{Kind: FlowBreak}
}

// Continue ends the current loop iteration.
func Continue() Flow {
	return Flow{Kind: FlowContinue}
}

func (f Flow) Resumes() bool {
	return f.Kind == FlowResume
}

func (f Flow) Returns() bool {
	return f.Kind == FlowReturn
}

func (f Flow) Breaks() bool {
	return f.Kind == FlowBreak
}

func (f Flow) Continues() bool {
	return f.Kind == FlowContinue
}

// HasValue reports whether the flow carries a value.
func (f Flow) HasValue() bool {
	return f.Value != nil
}

// Get returns the carried value, or null when there is none.
func (f Flow) Get() object.Object {
	if f.Value == nil {
		return object.Null
	}
	return f.Value
}

func (f Flow) String() string {
	if f.Value == nil {
		return f.Kind.String()
	}
	return f.Kind.String() + "(" + f.Value.Inspect() + ")"
}
