package loop

import (
	"context"
	"sync"
	"sync/atomic"

	"code.cloudfoundry.org/clock"
	"go.uber.org/zap"

	"github.com/wippyai/uvcompat/errors"
)

// Options configures a Loop.
type Options struct {
	// Clock drives timers. Tests substitute a fakeclock.
	Clock clock.Clock

	// Logger receives loop diagnostics. Defaults to the package logger.
	Logger *zap.Logger
}

// DefaultOptions returns options backed by the wall clock.
func DefaultOptions() Options {
	return Options{
		Clock:  clock.NewClock(),
		Logger: Logger(),
	}
}

// Loop owns every handle's state and runs all callbacks on the goroutine
// that calls Run.
//
// Two queues feed it. Tick tasks (NextTick, Defer) run first, in FIFO order.
// Microtasks (Post) carry native completions posted by goroutines doing
// blocking I/O and run once the tick queue is empty. A drain repeats until
// both queues are empty.
type Loop struct {
	clock  clock.Clock
	logger *zap.Logger

	wake chan struct{}

	ticks TickQueue
	micro TickQueue
	mu    sync.Mutex

	refs    atomic.Int64
	pending atomic.Int64

	scheduled atomic.Bool
	running   atomic.Bool
	stopReq   atomic.Bool
}

// New creates an idle loop.
func New(opts Options) *Loop {
	if opts.Clock == nil {
		opts.Clock = clock.NewClock()
	}
	if opts.Logger == nil {
		opts.Logger = Logger()
	}
	return &Loop{
		clock:  opts.Clock,
		logger: opts.Logger,
		wake:   make(chan struct{}, 1),
	}
}

// Clock returns the clock timers are scheduled on.
func (l *Loop) Clock() clock.Clock { return l.clock }

// Logger returns the loop's logger.
func (l *Loop) Logger() *zap.Logger { return l.logger }

// NextTick queues cb(args...) to run before any pending microtask.
// Safe to call from any goroutine.
func (l *Loop) NextTick(cb func(args ...any), args ...any) {
	if cb == nil {
		panic(errors.InvalidCallback(errors.PhaseSchedule, "NextTick"))
	}
	l.mu.Lock()
	l.ticks.Push(Task{Callback: cb, Args: args})
	l.mu.Unlock()
	l.signal()
}

// Defer queues fn as a tick task.
func (l *Loop) Defer(fn func()) {
	if fn == nil {
		panic(errors.InvalidCallback(errors.PhaseSchedule, "Defer"))
	}
	l.NextTick(func(...any) { fn() })
}

// Post queues fn as a microtask. Native operations use it to settle their
// results on the loop goroutine. Safe to call from any goroutine.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		panic(errors.InvalidCallback(errors.PhaseSchedule, "Post"))
	}
	l.mu.Lock()
	l.micro.Push(Task{Callback: func(...any) { fn() }})
	l.mu.Unlock()
	l.signal()
}

// Call runs fn on the loop goroutine and waits for it to return.
// It must not be called from the loop goroutine itself.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ref marks one more handle as keeping the loop alive.
func (l *Loop) Ref() { l.refs.Add(1) }

// Unref releases a reference taken with Ref.
func (l *Loop) Unref() {
	if l.refs.Add(-1) < 0 {
		l.refs.Store(0)
	}
	l.signal()
}

// Begin records an outstanding native operation or timer. The returned
// function settles it and must be called exactly once, normally on the loop.
func (l *Loop) Begin() (done func()) {
	l.pending.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			l.pending.Add(-1)
			l.signal()
		})
	}
}

// Pending returns the number of outstanding native operations and timers.
func (l *Loop) Pending() int { return int(l.pending.Load()) }

// Alive reports whether Run still has something to wait for.
func (l *Loop) Alive() bool {
	if l.refs.Load() > 0 || l.pending.Load() > 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.ticks.IsEmpty() || !l.micro.IsEmpty()
}

// Running reports whether Run is executing.
func (l *Loop) Running() bool { return l.running.Load() }

// Stop makes Run return after the current drain.
func (l *Loop) Stop() {
	l.stopReq.Store(true)
	l.wakeUp()
}

// Run drains the loop until it is no longer alive, Stop is called or ctx is
// cancelled. A panic raised by a task stops the loop and is returned as an
// error of kind errors.KindTaskPanic.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New(errors.PhaseSchedule, errors.KindLoopRunning).
			Op("Run").
			Detail("loop is already running").
			Build()
	}
	defer l.running.Store(false)
	defer l.stopReq.Store(false)

	for {
		if err := l.drain(); err != nil {
			return err
		}
		if l.stopReq.Load() {
			return nil
		}
		if !l.Alive() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// RunOnce drains whatever is queued without waiting.
func (l *Loop) RunOnce() error {
	return l.drain()
}

func (l *Loop) drain() (err error) {
	l.scheduled.Store(false)
	defer func() {
		if r := recover(); r != nil {
			err = errors.TaskPanic(r)
			l.logger.Error("task panicked", zap.Any("panic", r))
		}
	}()

	for {
		for {
			t, ok := l.shift(&l.ticks)
			if !ok {
				break
			}
			t.run()
		}

		ran := false
		for {
			t, ok := l.shift(&l.micro)
			if !ok {
				break
			}
			ran = true
			t.run()
		}

		if !ran && l.ticksEmpty() {
			return nil
		}
	}
}

func (l *Loop) shift(q *TickQueue) (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return q.Shift()
}

func (l *Loop) ticksEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ticks.IsEmpty()
}

// signal wakes Run unless a wake-up is already scheduled.
func (l *Loop) signal() {
	if l.scheduled.CompareAndSwap(false, true) {
		l.wakeUp()
	}
}

func (l *Loop) wakeUp() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
