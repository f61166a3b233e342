package vm

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
)

// Robot is a loaded script or library: a top level block plus the libraries
// it includes. A robot runs at most once.
type Robot struct {
	InstructionSet

	id        RobotID
	libraries []*Robot

	mu       sync.RWMutex
	argument object.Object
	runID    uuid.UUID
	ctx      context.Context
	output   OutputHandler
	threads  *Threads

	ran         atomic.Bool
	initialized atomic.Bool
	closed      atomic.Bool

	libraryProcessed []Instruction
}

// NewRobot creates an empty robot.
func NewRobot(id RobotID, dbg Debugger) *Robot {
	r := &Robot{id: id, ctx: context.Background()}
	r.InstructionSet.debugger = dbg
	r.InstructionSet.pos = Position{Robot: id}
	return r
}

// ID returns the identifier of the robot.
func (r *Robot) ID() RobotID {
	return r.id
}

// Block returns the top level block.
func (r *Robot) Block() *InstructionSet {
	return &r.InstructionSet
}

// AddLibrary includes a library. Its variables and functions are
// initialized before the robot runs.
func (r *Robot) AddLibrary(lib *Robot) {
	r.libraries = append(r.libraries, lib)
}

// Libraries returns the included libraries.
func (r *Robot) Libraries() []*Robot {
	return r.libraries
}

// SetArgument sets the value the robot was called with.
func (r *Robot) SetArgument(arg object.Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.argument = arg
}

// Argument returns the call argument, if the robot was called with one.
func (r *Robot) Argument() (object.Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.argument == nil {
		return object.Null, false
	}
	return r.argument, true
}

// RunID identifies the current run. It is the nil UUID before the robot ran.
func (r *Robot) RunID() uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runID
}

// Context returns the context of the current run.
func (r *Robot) Context() context.Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ctx
}

// SetContext sets the context handed to constructs.
func (r *Robot) SetContext(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = ctx
}

// Output returns the output handler of the run, which may be nil.
func (r *Robot) Output() OutputHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.output
}

// SetOutput sets the output handler handed to constructs.
func (r *Robot) SetOutput(out OutputHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output = out
}

// Threads returns the goroutine tracker used for sub-robots.
func (r *Robot) Threads() *Threads {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.threads == nil {
		r.threads = NewThreads()
	}
	return r.threads
}

// SetThreads shares a goroutine tracker with a calling robot.
func (r *Robot) SetThreads(threads *Threads) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads = threads
}

func (r *Robot) Process(dbg Debugger) (Flow, error) {
	if !r.ran.CompareAndSwap(false, true) {
		return Flow{}, errz.Runtimef("This robot cannot run twice.")
	}
	runID := uuid.Must(uuid.NewV4())
	r.mu.Lock()
	r.runID = runID
	r.mu.Unlock()

	logger := log.With().Str("robot", r.id.String()).Str("run_id", runID.String()).Logger()
	logger.Debug().Msg("robot started")
	dbg.RobotStarted(r)

	if err := r.initializeLibraries(dbg); err != nil {
		dbg.RobotFinished(r)
		return Flow{}, err
	}

	result, err := r.InstructionSet.Process(dbg)

	dbg.RobotFinished(r)
	logger.Debug().Err(unwrapPropagated(err)).Str("result", result.Kind.String()).Msg("robot finished")
	return result, err
}

// initializeLibraries declares the variables and functions of every library,
// each library once even when it is included several times.
func (r *Robot) initializeLibraries(dbg Debugger) error {
	r.initialized.Store(true)
	for _, lib := range r.libraries {
		if lib.initialized.Load() {
			continue
		}
		if err := lib.initializeAsLibrary(dbg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Robot) initializeAsLibrary(dbg Debugger) error {
	if err := r.initializeLibraries(dbg); err != nil {
		return err
	}
	for _, instr := range r.Instructions() {
		if dbg.ShouldStop() {
			return nil
		}
		switch instr.(type) {
		case *VariableDeclaration, *FunctionDeclaration:
		default:
			continue
		}
		r.libraryProcessed = append(r.libraryProcessed, instr)
		if _, err := instr.Process(dbg); err != nil {
			if herr := dbg.Handle(locate(err, instr)); herr != nil {
				return &propagated{err: herr}
			}
		}
	}
	return nil
}

// Close releases the library state of the robot and of its libraries.
// Closing twice is harmless.
func (r *Robot) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	var result error
	for _, lib := range r.libraries {
		if err := lib.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, instr := range r.libraryProcessed {
		if err := instr.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	r.libraryProcessed = nil
	return result
}
