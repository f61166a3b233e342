package vm

import (
	"context"

	"github.com/deepnoodle-ai/robot/object"
	"github.com/rs/zerolog/log"
)

// Run runs the robot under dbg and returns the value it returned, or null.
// Cancelling ctx stops the run through the debugger; Run then returns the
// context error. The robot's library state is closed before returning.
func Run(ctx context.Context, robot *Robot, dbg Debugger, options ...Option) (object.Object, error) {
	var cfg runConfig
	for _, opt := range options {
		opt(&cfg)
	}
	if cfg.argument != nil {
		robot.SetArgument(cfg.argument)
	}
	if cfg.output != nil {
		robot.SetOutput(cfg.output)
		dbg.SetOutputHandler(cfg.output)
	}
	if cfg.policy != nil {
		dbg.SetErrorHandler(cfg.policy)
	}
	if cfg.threads != nil {
		robot.SetThreads(cfg.threads)
	}
	robot.SetContext(ctx)

	// Stop the run when the context is cancelled
	finished := make(chan struct{})
	defer close(finished)
	if doneChan := ctx.Done(); doneChan != nil {
		go func() {
			select {
			case <-doneChan:
				dbg.Stop()
			case <-finished:
			}
		}()
	}

	flow, err := robot.Process(dbg)
	result := object.Object(object.Null)
	if err == nil {
		result = flow.Get()
	}
	result.PreventDisposal()
	if cerr := robot.Close(); cerr != nil {
		log.Error().Err(cerr).Str("robot", robot.ID().String()).Msg("failed to close robot")
	}
	result.AllowDisposal()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, unwrapPropagated(err)
	}
	return result, nil
}
