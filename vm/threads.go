package vm

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// Threads tracks the goroutines a run starts for sub-robots, so a host can
// wait for all of them before tearing the run down.
type Threads struct {
	wg     conc.WaitGroup
	active atomic.Int64
}

// NewThreads creates an empty tracker.
func NewThreads() *Threads {
	return &Threads{}
}

// Go runs fn on a tracked goroutine. The returned channel is closed when fn
// returns. A panic in fn is logged and does not crash the process.
func (t *Threads) Go(fn func()) <-chan struct{} {
	done := make(chan struct{})
	t.active.Add(1)
	t.wg.Go(func() {
		defer close(done)
		defer t.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("robot thread panicked")
			}
		}()
		fn()
	})
	return done
}

// Wait blocks until every tracked goroutine returned.
func (t *Threads) Wait() {
	t.wg.Wait()
}

// Active returns the number of running goroutines.
func (t *Threads) Active() int {
	return int(t.active.Load())
}
