package vm

import "github.com/deepnoodle-ai/robot/object"

// Option is a configuration function for a robot run.
type Option func(*runConfig)

type runConfig struct {
	argument object.Object
	output   OutputHandler
	policy   ErrorHandlingPolicy
	threads  *Threads
}

// WithArgument passes a call argument to the robot.
func WithArgument(arg object.Object) Option {
	return func(cfg *runConfig) {
		cfg.argument = arg
	}
}

// WithOutputHandler sets where the robot's log output and reported errors
// go. The handler is installed on the debugger too.
func WithOutputHandler(out OutputHandler) Option {
	return func(cfg *runConfig) {
		cfg.output = out
	}
}

// WithErrorHandler installs an error handling policy on the debugger.
func WithErrorHandler(policy ErrorHandlingPolicy) Option {
	return func(cfg *runConfig) {
		cfg.policy = policy
	}
}

// WithThreads shares a goroutine tracker across runs.
func WithThreads(threads *Threads) Option {
	return func(cfg *runConfig) {
		cfg.threads = threads
	}
}
