package handle

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/uvcompat/loop"
	"github.com/wippyai/uvcompat/resource"
)

// State is the lifecycle state of a handle. It only moves forward.
type State uint8

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Handle is the lifecycle core embedded by every stream and socket.
//
// All methods except Closed must be called on the loop goroutine.
type Handle struct {
	loop   *loop.Loop
	table  *resource.Table
	logger *zap.Logger
	closed chan struct{}

	teardown []func() error
	drains   []func(done func())
	onClosed []func()
	closeCbs []func()

	id       resource.ID
	active   int
	provider resource.Provider
	state    State
	hasRef   bool
	holding  bool
}

// New registers a handle for owner in table. The handle starts referenced,
// but only keeps the loop alive while it is active.
func New(l *loop.Loop, table *resource.Table, provider resource.Provider, owner any) *Handle {
	id := resource.NewID()
	h := &Handle{
		loop:     l,
		table:    table,
		closed:   make(chan struct{}),
		id:       id,
		provider: provider,
		hasRef:   true,
		logger: l.Logger().With(
			zap.Uint64("async_id", uint64(id)),
			zap.Stringer("provider", provider),
		),
	}
	table.Track(id, provider, owner)
	return h
}

// ID returns the handle's async id.
func (h *Handle) ID() resource.ID { return h.id }

// Provider returns the handle's provider tag.
func (h *Handle) Provider() resource.Provider { return h.provider }

// State returns the lifecycle state.
func (h *Handle) State() State { return h.state }

// IsOpen reports whether Close has not been called yet.
func (h *Handle) IsOpen() bool { return h.state == StateOpen }

// Loop returns the loop the handle runs on.
func (h *Handle) Loop() *loop.Loop { return h.loop }

// Table returns the resource table the handle is registered in.
func (h *Handle) Table() *resource.Table { return h.table }

// Logger returns a logger annotated with the handle's id and provider.
func (h *Handle) Logger() *zap.Logger { return h.logger }

// Closed returns a channel that is closed once the handle reaches StateClosed.
// Safe to use from any goroutine.
func (h *Handle) Closed() <-chan struct{} { return h.closed }

// Ref makes an active handle keep the loop alive. Idempotent.
func (h *Handle) Ref() {
	h.hasRef = true
	h.syncRef()
}

// Unref lets the loop exit even while the handle is active. Idempotent.
func (h *Handle) Unref() {
	h.hasRef = false
	h.syncRef()
}

// HasRef reports whether the handle is referenced.
func (h *Handle) HasRef() bool { return h.hasRef }

// Activate marks the handle as having outstanding work. The returned function
// ends that activation; calling it more than once has no effect.
func (h *Handle) Activate() (release func()) {
	h.active++
	h.syncRef()
	released := false
	return func() {
		if released {
			return
		}
		released = true
		h.active--
		h.syncRef()
	}
}

// Active reports whether the handle has outstanding work.
func (h *Handle) Active() bool { return h.active > 0 || h.state == StateClosing }

// OnTeardown registers fn to release native resources when Close starts.
// Hooks run in registration order.
func (h *Handle) OnTeardown(fn func() error) {
	h.teardown = append(h.teardown, fn)
}

// OnDrain registers fn to be called during Close; fn must call done once the
// embedding layer's in-flight work has settled.
func (h *Handle) OnDrain(fn func(done func())) {
	h.drains = append(h.drains, fn)
}

// OnClosed registers fn to run when the handle reaches StateClosed, before
// close callbacks are delivered.
func (h *Handle) OnClosed(fn func()) {
	h.onClosed = append(h.onClosed, fn)
}

// Close releases the handle. The first call starts teardown; calls made while
// closing add cb to the callbacks delivered once the handle is closed; calls
// after that are ignored. Callbacks run on a later tick.
func (h *Handle) Close(cb func()) {
	switch h.state {
	case StateClosed:
		return
	case StateClosing:
		if cb != nil {
			h.closeCbs = append(h.closeCbs, cb)
		}
		return
	}

	h.state = StateClosing
	if cb != nil {
		h.closeCbs = append(h.closeCbs, cb)
	}
	h.syncRef()

	var err error
	for _, fn := range h.teardown {
		err = multierr.Append(err, fn())
	}
	if err != nil {
		h.logger.Debug("teardown failed", zap.Error(err))
	}

	h.drain(h.finish)
}

func (h *Handle) drain(done func()) {
	remaining := len(h.drains)
	if remaining == 0 {
		done()
		return
	}
	for _, fn := range h.drains {
		settled := false
		fn(func() {
			if settled {
				return
			}
			settled = true
			remaining--
			if remaining == 0 {
				done()
			}
		})
	}
}

func (h *Handle) finish() {
	h.state = StateClosed
	h.syncRef()
	h.table.Remove(h.id)
	close(h.closed)

	for _, fn := range h.onClosed {
		fn()
	}

	cbs := h.closeCbs
	h.closeCbs = nil
	h.teardown, h.drains, h.onClosed = nil, nil, nil
	if len(cbs) == 0 {
		return
	}
	h.loop.Defer(func() {
		for _, cb := range cbs {
			cb()
		}
	})
}

// syncRef holds a loop reference while the handle is closing, or while it is
// open, referenced and active.
func (h *Handle) syncRef() {
	want := h.state == StateClosing || (h.state == StateOpen && h.hasRef && h.active > 0)
	if want == h.holding {
		return
	}
	h.holding = want
	if want {
		h.loop.Ref()
	} else {
		h.loop.Unref()
	}
}
