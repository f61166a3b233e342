package vm

import (
	"errors"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
)

// InstructionSet is a block: an ordered list of instructions sharing one
// lexical scope. Processing a block runs its instructions in order until one
// of them does not resume, then closes every instruction that ran.
type InstructionSet struct {
	base
	debugger     Debugger
	parent       Instruction
	instructions []Instruction
}

// NewInstructionSet creates an empty block driven by dbg.
func NewInstructionSet(dbg Debugger) *InstructionSet {
	return &InstructionSet{debugger: dbg}
}

// Add appends an instruction and makes this block its host.
func (s *InstructionSet) Add(instr Instruction) {
	instr.SetHost(s)
	s.instructions = append(s.instructions, instr)
}

// Instructions returns the instructions of the block.
func (s *InstructionSet) Instructions() []Instruction {
	return s.instructions
}

// Len returns the number of instructions.
func (s *InstructionSet) Len() int {
	return len(s.instructions)
}

// Debugger returns the debugger the block was created with.
func (s *InstructionSet) Debugger() Debugger {
	return s.debugger
}

// Parent returns the instruction owning this block, or nil for the top
// level block of a robot.
func (s *InstructionSet) Parent() Instruction {
	return s.parent
}

// SetParent records the instruction owning this block. A block can only
// have one parent.
func (s *InstructionSet) SetParent(parent Instruction) {
	if s.parent != nil && s.parent != parent {
		panic(errz.Fatalf("the parent instruction of the block at %s has already been set", s.pos))
	}
	s.parent = parent
}

func (s *InstructionSet) Process(dbg Debugger) (Flow, error) {
	var (
		result    Flow
		exited    bool
		processed []Instruction
		failure   error
	)

	for _, instr := range s.instructions {
		if dbg.ShouldStop() {
			result, exited = Return(object.Null), true
			dbg.Returning(s, result)
			break
		}

		debuggable := !instr.PreventDebugging()
		if debuggable {
			dbg.StartInstruction(instr)
		}

		if dbg.ShouldStop() {
			result, exited = Return(object.Null), true
			if debuggable {
				dbg.EndInstruction(instr, result)
			}
			dbg.Returning(s, result)
			break
		}

		flow, err := s.processInstruction(instr, dbg)
		processed = append(processed, instr)
		if err != nil {
			failure = err
			flow = Return(object.Null)
		}

		if debuggable {
			dbg.EndInstruction(instr, flow)
		}

		if failure != nil {
			break
		}
		if !flow.Resumes() {
			dbg.Returning(s, flow)
			result, exited = flow, true
			break
		}
	}

	if exited && result.HasValue() {
		result.Value.PreventDisposal()
	}

	var closeErr error
	for _, instr := range processed {
		if err := instr.Close(); err != nil {
			closeErr = multierror.Append(closeErr, err)
		}
	}
	if err := s.Close(); err != nil {
		closeErr = multierror.Append(closeErr, err)
	}
	if closeErr != nil {
		log.Error().Err(closeErr).
			Str("robot", s.pos.Robot.String()).
			Int("line", s.pos.Line).
			Msg("failed to close instructions")
	}

	if failure != nil {
		return Flow{}, failure
	}
	if exited {
		if result.HasValue() {
			result.Value.AllowDisposal()
		}
		return result, nil
	}
	return Resume(), nil
}

// processInstruction runs one instruction and passes its error to the
// debugger. An absorbed error turns into a null result.
func (s *InstructionSet) processInstruction(instr Instruction, dbg Debugger) (Flow, error) {
	flow, err := instr.Process(dbg)
	if err == nil {
		return flow, nil
	}
	var p *propagated
	if errors.As(err, &p) {
		return Flow{}, &propagated{err: locate(p.err, instr)}
	}
	if herr := dbg.Handle(locate(err, instr)); herr != nil {
		return Flow{}, &propagated{err: herr}
	}
	return ResumeWith(object.Null), nil
}

// propagated marks an error a debugger decided to rethrow, so enclosing
// blocks pass it on without handling it again.
type propagated struct {
	err error
}

func (p *propagated) Error() string {
	return p.err.Error()
}

func (p *propagated) Unwrap() error {
	return p.err
}

// unwrapPropagated returns the error a debugger rethrew.
func unwrapPropagated(err error) error {
	var p *propagated
	if errors.As(err, &p) {
		return p.err
	}
	return err
}
