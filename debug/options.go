package debug

import "github.com/deepnoodle-ai/robot/vm"

// Option configures a RobotDebugger.
type Option func(*RobotDebugger)

// WithBreakpoints installs breakpoints.
func WithBreakpoints(bps ...vm.Breakpoint) Option {
	return func(d *RobotDebugger) {
		d.breakpoints = append(d.breakpoints, bps...)
	}
}

// WithListener registers a listener for run events.
func WithListener(l Listener) Option {
	return func(d *RobotDebugger) {
		d.listeners = append(d.listeners, l)
	}
}

// WithErrorHandler installs the policy deciding whether errors propagate.
func WithErrorHandler(policy vm.ErrorHandlingPolicy) Option {
	return func(d *RobotDebugger) {
		d.policy = policy
	}
}

// WithOutputHandler sets the handler errors are reported to.
func WithOutputHandler(out vm.OutputHandler) Option {
	return func(d *RobotDebugger) {
		d.output = out
	}
}

// WithDebugInfo registers the variable declarations of loaded robots.
func WithDebugInfo(info *vm.DebugInfo) Option {
	return func(d *RobotDebugger) {
		d.info.Add(info)
	}
}
