package srv

import (
	"context"
	"github.com/sirupsen/logrus"
	"os"
	"os/signal"
	"sync/atomic"
)

// ShutdownSignal is the process wide stop token. Request marks the stop as
// asked for by the operator, trigger only stops.
type ShutdownSignal struct {
	ctx       context.Context
	cancel    context.CancelFunc
	requested atomic.Bool
	set       atomic.Bool
	log       *logrus.Entry
}

func NewShutdownSignal(parent context.Context) *ShutdownSignal {
	ctx, cancel := context.WithCancel(parent)
	return &ShutdownSignal{
		ctx:    ctx,
		cancel: cancel,
		log:    logrus.WithField("source", "supervisor"),
	}
}

func (s *ShutdownSignal) Request(reason string) {
	s.requested.Store(true)
	s.trigger(reason)
}

func (s *ShutdownSignal) trigger(reason string) {
	if s.set.CompareAndSwap(false, true) {
		s.log.Infof("Shutdown: %s", reason)
	}
	s.cancel()
}

func (s *ShutdownSignal) Context() context.Context {
	return s.ctx
}

func (s *ShutdownSignal) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *ShutdownSignal) IsSet() bool {
	return s.set.Load() || s.ctx.Err() != nil
}

func (s *ShutdownSignal) Requested() bool {
	return s.requested.Load()
}

// NotifyOn requests a shutdown on the first of signals. The returned
// function stops listening.
func (s *ShutdownSignal) NotifyOn(signals ...os.Signal) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	stopped := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			s.Request("received signal " + sig.String())
		case <-stopped:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(stopped)
	}
}
