package object

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// lifecycle carries the reference counting state shared by all values.
type lifecycle struct {
	refs       atomic.Int64
	preventing atomic.Bool
	closed     atomic.Bool
	permanent  bool
	meta       MetaPool

	// contents lists the children the value holds references to.
	contents func() []Object
	// drop forgets the children after they were released.
	drop func()
}

func (l *lifecycle) life() *lifecycle {
	return l
}

func (l *lifecycle) RegisterReference() {
	l.refs.Add(1)
}

func (l *lifecycle) ReleaseReference() {
	remaining := l.refs.Add(-1)
	if remaining <= 0 && !l.preventing.Load() {
		if err := l.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to dispose value")
		}
	}
}

func (l *lifecycle) PreventDisposal() {
	l.setPreventDisposal(true)
}

func (l *lifecycle) AllowDisposal() {
	l.setPreventDisposal(false)
}

func (l *lifecycle) setPreventDisposal(value bool) {
	if !l.preventing.CompareAndSwap(!value, value) {
		return
	}
	if l.contents == nil {
		return
	}
	for _, child := range l.contents() {
		child.life().setPreventDisposal(value)
	}
}

func (l *lifecycle) IsDisposalPrevented() bool {
	return l.preventing.Load()
}

func (l *lifecycle) RefCount() int {
	return int(l.refs.Load())
}

func (l *lifecycle) IsClosed() bool {
	return l.closed.Load()
}

func (l *lifecycle) Close() error {
	if l.permanent || !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := l.meta.close()
	if l.contents != nil {
		for _, child := range l.contents() {
			child.ReleaseReference()
		}
		l.drop()
	}
	return err
}

func (l *lifecycle) StoreMeta(value any) {
	l.meta.Store(value)
}

func (l *lifecycle) Meta() *MetaPool {
	return &l.meta
}
