package debug

import (
	"github.com/deepnoodle-ai/robot/vm"
	"github.com/gofrs/uuid"
)

// Listener receives the lifecycle events of a debugged run. Callbacks are
// invoked synchronously, on the goroutine that caused the event: the
// executing goroutine for start, pause, continue and finish events, the
// controlling goroutine for interrupts. Implementations must not block.
//
// Embed NoOpListener to implement only the callbacks you need.
type Listener interface {
	// OnRobotStarted is called before the first instruction of a run.
	OnRobotStarted(event RobotEvent)

	// OnRobotStopped is called after the last instruction of a run,
	// whether it completed, failed or was stopped.
	OnRobotStopped(event RobotEvent)

	// OnRobotPaused is called when execution blocks at an instruction.
	OnRobotPaused(event PauseEvent)

	// OnRobotContinued is called when a paused execution resumes.
	OnRobotContinued(event PauseEvent)

	// OnRobotInterrupted is called when a stop was requested.
	OnRobotInterrupted()
}

// RobotEvent identifies the run a lifecycle event belongs to.
type RobotEvent struct {
	Robot vm.RobotID
	RunID uuid.UUID
}

// PauseEvent describes the instruction execution is paused on.
type PauseEvent struct {
	Instruction vm.Instruction
	Position    vm.Position
	StackDepth  int
}

// NoOpListener ignores every event.
type NoOpListener struct{}

func (NoOpListener) OnRobotStarted(RobotEvent)   {}
func (NoOpListener) OnRobotStopped(RobotEvent)   {}
func (NoOpListener) OnRobotPaused(PauseEvent)    {}
func (NoOpListener) OnRobotContinued(PauseEvent) {}
func (NoOpListener) OnRobotInterrupted()         {}

// ListenerFuncs adapts optional functions to Listener. Nil fields are
// skipped.
type ListenerFuncs struct {
	Started     func(RobotEvent)
	Stopped     func(RobotEvent)
	Paused      func(PauseEvent)
	Continued   func(PauseEvent)
	Interrupted func()
}

func (f ListenerFuncs) OnRobotStarted(event RobotEvent) {
	if f.Started != nil {
		f.Started(event)
	}
}

func (f ListenerFuncs) OnRobotStopped(event RobotEvent) {
	if f.Stopped != nil {
		f.Stopped(event)
	}
}

func (f ListenerFuncs) OnRobotPaused(event PauseEvent) {
	if f.Paused != nil {
		f.Paused(event)
	}
}

func (f ListenerFuncs) OnRobotContinued(event PauseEvent) {
	if f.Continued != nil {
		f.Continued(event)
	}
}

func (f ListenerFuncs) OnRobotInterrupted() {
	if f.Interrupted != nil {
		f.Interrupted()
	}
}
