package vm

import (
	"fmt"

	"github.com/deepnoodle-ai/robot/errz"
)

// Expression is anything that can be evaluated against a debugger. Leaf
// constructs and operators implement it directly; instructions build on it.
type Expression interface {
	Process(dbg Debugger) (Flow, error)
}

// Instruction is one node of an instruction tree. The set of instructions is
// closed: only types in this package implement it.
type Instruction interface {
	Expression

	// Position returns the robot and line the instruction was compiled from.
	Position() Position

	// Host returns the block that owns this instruction.
	Host() *InstructionSet

	// SetHost attaches the instruction to a block. An instruction can only
	// ever belong to one block.
	SetHost(host *InstructionSet)

	// PreventDebugging reports whether the debugger should not be notified
	// about this instruction.
	PreventDebugging() bool

	// Close releases the values the instruction holds since it was
	// processed. Closing twice is harmless.
	Close() error

	instruction()
}

// RobotID identifies a robot: a script or library instance.
type RobotID struct {
	Path string
	Name string
}

func (id RobotID) String() string {
	if id.Path != "" {
		return id.Path
	}
	return id.Name
}

// IsZero reports whether the identifier is unset.
func (id RobotID) IsZero() bool {
	return id.Path == "" && id.Name == ""
}

// Position is the origin of an instruction.
type Position struct {
	Robot RobotID
	Line  int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d", p.Robot, p.Line)
}

// Location converts the position into an error location.
func (p Position) Location() errz.SourceLocation {
	return errz.SourceLocation{Robot: p.Robot.String(), Line: p.Line}
}

// base carries the state every instruction shares.
type base struct {
	pos  Position
	host *InstructionSet
}

func (b *base) instruction() {}

func (b *base) Position() Position {
	return b.pos
}

// SetPosition records where the instruction was compiled from.
func (b *base) SetPosition(pos Position) {
	b.pos = pos
}

func (b *base) Host() *InstructionSet {
	return b.host
}

func (b *base) SetHost(host *InstructionSet) {
	if b.host != nil && b.host != host {
		panic(errz.Fatalf("instruction at %s already has a host", b.pos))
	}
	b.host = host
}

func (b *base) PreventDebugging() bool {
	return false
}

func (b *base) Close() error {
	return nil
}

// Positioned is implemented by instructions whose position can be set after
// construction.
type Positioned interface {
	SetPosition(pos Position)
}

// Parent returns the instruction that owns the block hosting instr, or nil
// at the top of a robot.
func Parent(instr Instruction) Instruction {
	host := instr.Host()
	if host == nil {
		return nil
	}
	return host.Parent()
}

// locate attaches the instruction position to a script error that has no
// location yet.
func locate(err error, instr Instruction) error {
	if err == nil || instr == nil {
		return err
	}
	se := errz.Wrap(err)
	se.Locate(instr.Position().Location())
	return se
}
