package supervisor

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"supportbot/pkg/logx"
)

// Supervisor manages goroutines tied to a shared context.
// - Named goroutines (for logging/debug)
// - Panic recovery
// - Graceful stop with timeout-aware waiting
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	log logx.Logger

	started atomic.Uint64
	active  atomic.Int64

	wg       sync.WaitGroup
	doneOnce sync.Once
	doneCh   chan struct{}
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{ctx: ctx, cancel: cancel, log: logx.Nop(), doneCh: make(chan struct{})}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Go starts a named goroutine under the supervisor's context.
// Panics are recovered and logged; they never take down the process.
func (s *Supervisor) Go(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	s.wg.Add(1)
	s.started.Add(1)
	s.active.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in supervised goroutine",
					logx.String("goroutine", name),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
			}
		}()
		s.log.Debug("goroutine started", logx.String("goroutine", name))
		fn(s.ctx)
		s.log.Debug("goroutine stopped", logx.String("goroutine", name))
	}()
}

// Cancel signals all supervised goroutines to stop.
func (s *Supervisor) Cancel() { s.cancel() }

// Active reports how many supervised goroutines are currently running.
func (s *Supervisor) Active() int64 { return s.active.Load() }

// Started reports the total number of goroutines ever started.
func (s *Supervisor) Started() uint64 { return s.started.Load() }

// Wait blocks until all supervised goroutines exit or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go s.doneOnce.Do(func() {
		s.wg.Wait()
		close(s.doneCh)
	})
	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
