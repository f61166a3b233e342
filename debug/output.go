package debug

import (
	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/vm"
	"github.com/rs/zerolog"
)

// LogOutput is an OutputHandler writing to a zerolog logger.
type LogOutput struct {
	logger zerolog.Logger
}

// NewLogOutput creates an output handler logging through logger.
func NewLogOutput(logger zerolog.Logger) *LogOutput {
	return &LogOutput{logger: logger}
}

func (o *LogOutput) HandleLog(robot vm.RobotID, level zerolog.Level, msg string, args ...any) {
	event := o.logger.WithLevel(level).Str("robot", robot.String())
	if len(args) == 0 {
		event.Msg(msg)
		return
	}
	event.Msgf(msg, args...)
}

func (o *LogOutput) Inspect(instr vm.Instruction, err error) {
	event := o.logger.Error().Str("error", errz.Message(err))
	if instr != nil {
		pos := instr.Position()
		event = event.Str("robot", pos.Robot.String()).Int("line", pos.Line)
	} else if se := errz.Wrap(err); se != nil && !se.Location.IsZero() {
		event = event.Str("robot", se.Location.Robot).Int("line", se.Location.Line)
	}
	if kind, ok := errz.KindOf(err); ok {
		event = event.Str("kind", kind.String())
	}
	event.Msg("robot error")
}

// RethrowPolicy propagates every error.
type RethrowPolicy struct{}

func (RethrowPolicy) Handle(err error) error {
	if err == nil {
		return nil
	}
	return errz.Wrap(err)
}

// LogAndContinuePolicy logs errors and absorbs them, so the failing
// instruction evaluates to null and the run goes on.
type LogAndContinuePolicy struct {
	logger zerolog.Logger
}

// NewLogAndContinuePolicy creates a policy logging through logger.
func NewLogAndContinuePolicy(logger zerolog.Logger) *LogAndContinuePolicy {
	return &LogAndContinuePolicy{logger: logger}
}

func (p *LogAndContinuePolicy) Handle(err error) error {
	if err == nil {
		return nil
	}
	p.logger.Warn().Str("error", errz.Message(err)).Msg("continuing after error")
	return nil
}
