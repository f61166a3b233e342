package vm

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// RobotLoader loads robots called from other robots. Every call must return
// a fresh tree, since a robot runs only once and its variable slots belong
// to a single run.
type RobotLoader interface {
	LoadRobot(path string, caller RobotID) (*Robot, error)
}

// stopOnErrorDebugger is implemented by child debuggers that can stop a
// sub-robot at its first error.
type stopOnErrorDebugger interface {
	SetStopOnError(stop bool)
	ErrorOccurred() bool
}

// CallRobotExpression runs another robot and yields the value it returns.
// The sub-robot runs on its own goroutine under a child debugger; the
// calling robot waits for it.
type CallRobotExpression struct {
	loader   RobotLoader
	caller   *Robot
	path     Expression
	argument Expression
}

// NewCallRobotExpression creates a call. argument may be nil.
func NewCallRobotExpression(loader RobotLoader, caller *Robot, path, argument Expression) *CallRobotExpression {
	return &CallRobotExpression{loader: loader, caller: caller, path: path, argument: argument}
}

func (c *CallRobotExpression) Process(dbg Debugger) (Flow, error) {
	result, err := c.call(dbg)
	if err != nil {
		if herr := handleInExpression(dbg, err); herr != nil {
			return Flow{}, herr
		}
		return ResumeWith(object.Null), nil
	}
	return ResumeWith(result), nil
}

func (c *CallRobotExpression) call(dbg Debugger) (object.Object, error) {
	path, err := evalString(dbg, c.path)
	if err != nil {
		return nil, err
	}
	sub, err := c.loader.LoadRobot(path, c.caller.ID())
	if err != nil {
		return nil, errz.Runtimef("Error while calling robot: %s", errz.Message(err)).WithCause(err)
	}
	inherit(sub, c.caller)

	if c.argument != nil {
		flow, err := c.argument.Process(dbg)
		if err != nil {
			return nil, err
		}
		arg := flow.Get()
		arg.RegisterReference()
		defer arg.ReleaseReference()
		sub.SetArgument(arg)
	}

	child := dbg.CreateChild()
	defer dbg.RemoveChild(child)

	var (
		flow   Flow
		runErr error
	)
	<-c.caller.Threads().Go(func() {
		flow, runErr = sub.Process(child)
		result := object.Object(object.Null)
		if runErr == nil {
			result = flow.Get()
		}
		result.PreventDisposal()
		if cerr := sub.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("robot", sub.ID().String()).Msg("failed to close robot")
		}
		result.AllowDisposal()
	})
	if runErr != nil {
		return nil, causedBy(sub, unwrapPropagated(runErr))
	}
	return flow.Get(), nil
}

// RunBulkExpression runs a robot once per item, concurrently, and yields
// the number of successful runs. Each run gets its own tree, child debugger
// and a private copy of its item.
type RunBulkExpression struct {
	loader   RobotLoader
	caller   *Robot
	path     Expression
	argument Expression
	options  Expression
}

// NewRunBulkExpression creates a bulk run. options may be nil; it accepts an
// object with maxThreads (at least 1) and stopOnError ("yes" or "no").
func NewRunBulkExpression(loader RobotLoader, caller *Robot, path, argument, options Expression) *RunBulkExpression {
	return &RunBulkExpression{loader: loader, caller: caller, path: path, argument: argument, options: options}
}

type bulkOptions struct {
	maxThreads  int
	stopOnError bool
}

func (r *RunBulkExpression) Process(dbg Debugger) (Flow, error) {
	count, err := r.run(dbg)
	if err != nil {
		if herr := handleInExpression(dbg, err); herr != nil {
			return Flow{}, herr
		}
		return ResumeWith(object.Null), nil
	}
	return ResumeWith(object.NewInt(int64(count))), nil
}

func (r *RunBulkExpression) run(dbg Debugger) (int, error) {
	path, err := evalString(dbg, r.path)
	if err != nil {
		return 0, err
	}
	opts, err := r.parseOptions(dbg)
	if err != nil {
		return 0, err
	}
	if r.argument == nil {
		return 0, nil
	}
	flow, err := r.argument.Process(dbg)
	if err != nil {
		return 0, err
	}
	source := flow.Get()
	source.RegisterReference()
	defer source.ReleaseReference()

	next, err := bulkItems(source)
	if err != nil {
		return 0, err
	}

	var (
		stopped atomic.Bool
		count   atomic.Int64
		mu      sync.Mutex
		errs    *multierror.Error
	)
	fail := func(err error) {
		stopped.Store(true)
		mu.Lock()
		defer mu.Unlock()
		if herr := dbg.Handle(err); herr != nil {
			errs = multierror.Append(errs, herr)
		}
	}

	p := pool.New().WithMaxGoroutines(opts.maxThreads)
	for !stopped.Load() && !dbg.ShouldStop() {
		item, ok := next()
		if !ok {
			break
		}
		data, err := item.MarshalJSON()
		if err != nil {
			fail(errz.Valuef("Cannot pass item to robot: %s", err).WithCause(err))
			break
		}
		p.Go(func() {
			if stopped.Load() {
				return
			}
			ok, err := r.runOne(dbg, path, data, opts)
			switch {
			case err != nil:
				fail(err)
			case !ok || dbg.ShouldStop():
				stopped.Store(true)
			default:
				count.Add(1)
			}
		})
	}
	p.Wait()

	if errs != nil {
		if errs.Len() == 1 {
			return 0, &propagated{err: errs.Errors[0]}
		}
		return 0, &propagated{err: errs}
	}
	return int(count.Load()), nil
}

// runOne runs the robot for one item. It reports false when the run hit an
// error and the bulk run should stop because of it.
func (r *RunBulkExpression) runOne(dbg Debugger, path string, data []byte, opts bulkOptions) (bool, error) {
	sub, err := r.loader.LoadRobot(path, r.caller.ID())
	if err != nil {
		return false, errz.Runtimef("Error while calling robot: %s", errz.Message(err)).WithCause(err)
	}
	inherit(sub, r.caller)

	arg, err := object.FromJSON(data)
	if err != nil {
		return false, err
	}
	arg.RegisterReference()
	defer arg.ReleaseReference()
	sub.SetArgument(arg)

	child := dbg.CreateChild()
	defer dbg.RemoveChild(child)
	stoppable, canStop := child.(stopOnErrorDebugger)
	if canStop {
		stoppable.SetStopOnError(opts.stopOnError)
	}

	flow, runErr := sub.Process(child)
	result := object.Object(object.Null)
	if runErr == nil {
		result = flow.Get()
	}
	// The result is not used.
	result.RegisterReference()
	if cerr := sub.Close(); cerr != nil {
		r.log(zerolog.WarnLevel, "failed to close robot: %s", cerr)
	}
	result.ReleaseReference()

	if runErr != nil {
		return false, causedBy(sub, unwrapPropagated(runErr))
	}
	if opts.stopOnError && canStop && stoppable.ErrorOccurred() {
		return false, nil
	}
	return true, nil
}

func (r *RunBulkExpression) parseOptions(dbg Debugger) (bulkOptions, error) {
	opts := bulkOptions{maxThreads: runtime.NumCPU()}
	if r.options == nil {
		return opts, nil
	}
	flow, err := r.options.Process(dbg)
	if err != nil {
		return opts, err
	}
	value := flow.Get()
	value.RegisterReference()
	defer value.ReleaseReference()
	if object.IsNull(value) {
		return opts, nil
	}
	m, ok := value.(*object.Map)
	if !ok {
		return opts, errz.Valuef("The passed value for the \"options\" argument was not an OBJECT: %s", value.Inspect())
	}
	for _, key := range m.Keys() {
		v, _ := m.Get(key)
		switch key {
		case "maxThreads":
			n := int(object.ToNumber(v))
			if n < 1 {
				return opts, errz.Valuef("The \"maxThreads\" value in the \"options\" argument was not valid: %s", v.Inspect())
			}
			opts.maxThreads = n
		case "stopOnError":
			switch {
			case v.String() == "yes" || v.String() == "true":
				opts.stopOnError = true
			case v.String() == "no" || v.String() == "false":
				opts.stopOnError = false
			default:
				return opts, errz.Valuef("The \"stopOnError\" value in the \"options\" argument was not valid: %s", v.Inspect())
			}
		default:
			return opts, errz.Valuef("A key in the \"options\" argument was not a valid option name: %s", key)
		}
	}
	return opts, nil
}

func (r *RunBulkExpression) log(level zerolog.Level, msg string, args ...any) {
	if out := r.caller.Output(); out != nil {
		out.HandleLog(r.caller.ID(), level, msg, args...)
	}
}

// bulkItems returns a function yielding the items of a bulk run source. An
// atomic yields itself once unless it carries an iterator.
func bulkItems(source object.Object) (func() (object.Object, bool), error) {
	switch source := source.(type) {
	case *object.Atomic:
		if source.IsNull() {
			return func() (object.Object, bool) { return nil, false }, nil
		}
		if it, ok := object.GetMeta[*object.Iter](source); ok {
			return it.Next, nil
		}
		done := false
		return func() (object.Object, bool) {
			if done {
				return nil, false
			}
			done = true
			return source, true
		}, nil
	case *object.List:
		items := source.Items()
		i := 0
		return func() (object.Object, bool) {
			if i >= len(items) {
				return nil, false
			}
			i++
			return items[i-1], true
		}, nil
	default:
		return nil, errz.Valuef("Invalid argument: runBulk expects a LIST or an ATOMIC value.")
	}
}

func inherit(sub, caller *Robot) {
	sub.SetContext(caller.Context())
	sub.SetOutput(caller.Output())
	sub.SetThreads(caller.Threads())
}

func causedBy(sub *Robot, err error) error {
	line := 0
	if se := errz.Wrap(err); se != nil {
		line = se.Location.Line
	}
	return errz.Runtimef("Caused by '%s' (line %d): %s", sub.ID().String(), line, errz.Message(err)).WithCause(err)
}

func evalString(dbg Debugger, expr Expression) (string, error) {
	flow, err := expr.Process(dbg)
	if err != nil {
		return "", err
	}
	value := flow.Get()
	value.RegisterReference()
	defer value.ReleaseReference()
	return value.String(), nil
}
