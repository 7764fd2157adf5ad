package uvcompat

import (
	"context"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/uvcompat/errors"
	"github.com/wippyai/uvcompat/loop"
	"github.com/wippyai/uvcompat/metrics"
	"github.com/wippyai/uvcompat/native"
	"github.com/wippyai/uvcompat/resource"
	"github.com/wippyai/uvcompat/stream"
	"github.com/wippyai/uvcompat/tcp"
)

// Options configures a Runtime.
type Options struct {
	// Logger receives runtime and handle logs. Defaults to a no-op logger.
	Logger *zap.Logger

	// Clock drives timers and accept backoff. Defaults to the wall clock.
	Clock clock.Clock

	// Registerer, if set, exports the runtime's metrics.
	Registerer prometheus.Registerer

	// Network opens listeners and dials. Defaults to native.TCP.
	Network native.Network

	// ReadBufferSize is the size of each stream read.
	ReadBufferSize int
}

// DefaultOptions returns options for a runtime on the operating system's TCP stack.
func DefaultOptions() Options {
	return Options{
		Logger:         zap.NewNop(),
		Clock:          clock.NewClock(),
		Network:        native.TCP{},
		ReadBufferSize: native.DefaultBufferSize,
	}
}

// Runtime ties a loop, a handle table and a metrics collector together and
// creates handles bound to them.
type Runtime struct {
	id          uuid.UUID
	opts        Options
	logger      *zap.Logger
	loop        *loop.Loop
	table       *resource.Table
	metrics     *metrics.Collector
	unsubscribe func()
}

// New creates a runtime. It fails only when the metrics cannot be registered.
func New(opts Options) (*Runtime, error) {
	def := DefaultOptions()
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	if opts.Network == nil {
		opts.Network = def.Network
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = def.ReadBufferSize
	}

	id := uuid.New()
	logger := opts.Logger.With(zap.Stringer("runtime", id))

	collector := metrics.New()
	if opts.Registerer != nil {
		if err := opts.Registerer.Register(collector); err != nil {
			return nil, errors.Wrap(errors.PhaseInit, errors.KindInvalidState, err, "register metrics")
		}
	}

	table := resource.NewTable()
	r := &Runtime{
		id:      id,
		opts:    opts,
		logger:  logger,
		loop:    loop.New(loop.Options{Clock: opts.Clock, Logger: logger}),
		table:   table,
		metrics: collector,
	}
	r.unsubscribe = table.Subscribe(collector)
	return r, nil
}

// ID returns the runtime's instance id. It tags every log line.
func (r *Runtime) ID() uuid.UUID { return r.id }

func (r *Runtime) Loop() *loop.Loop { return r.loop }

func (r *Runtime) Table() *resource.Table { return r.table }

func (r *Runtime) Metrics() *metrics.Collector { return r.metrics }

func (r *Runtime) Logger() *zap.Logger { return r.logger }

// TCPOptions returns the options NewTCP passes to tcp.New.
func (r *Runtime) TCPOptions() tcp.Options {
	return tcp.Options{
		Network: r.opts.Network,
		Stream: stream.Options{
			ReadBufferSize: r.opts.ReadBufferSize,
			Observer:       r.metrics,
		},
		Observer: r.metrics,
	}
}

// NewTCP creates a TCP socket or server handle. Call it on the loop goroutine,
// or before Run.
func (r *Runtime) NewTCP(typ tcp.SocketType) *tcp.TCP {
	return tcp.New(r.loop, r.table, typ, r.TCPOptions())
}

// Run runs the loop until no handle keeps it alive, Stop is called or ctx is done.
func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Debug("loop starting")
	err := r.loop.Run(ctx)
	r.logger.Debug("loop stopped", zap.Error(err))
	return err
}

// Call runs fn on the loop goroutine and waits for it to return.
func (r *Runtime) Call(ctx context.Context, fn func()) error {
	return r.loop.Call(ctx, fn)
}

// Stop makes a running loop return after the current drain.
func (r *Runtime) Stop() { r.loop.Stop() }

type closer interface {
	Close(cb func())
	Closed() <-chan struct{}
}

// Close closes every live handle and waits until all of them are closed.
// When the loop is not running, Close runs it until the handles are gone.
// Metrics are unregistered last.
func (r *Runtime) Close(ctx context.Context) error {
	var handles []closer
	closeAll := func() {
		r.table.Each(func(_ resource.ID, _ resource.Provider, v any) bool {
			if c, ok := v.(closer); ok {
				handles = append(handles, c)
				c.Close(nil)
			}
			return true
		})
	}

	var err error
	if r.loop.Running() {
		err = r.loop.Call(ctx, closeAll)
	} else {
		closeAll()
		err = r.loop.Run(ctx)
	}

	if err == nil {
		for i, c := range handles {
			select {
			case <-c.Closed():
			case <-ctx.Done():
				err = errors.New(errors.PhaseClose, errors.KindInvalidState).
					Op("close").
					Cause(ctx.Err()).
					Detail("%d handles still closing", len(handles)-i).
					Build()
			}
			if err != nil {
				break
			}
		}
	}

	r.unsubscribe()
	if r.opts.Registerer != nil && !r.opts.Registerer.Unregister(r.metrics) {
		err = multierr.Append(err, errors.New(errors.PhaseClose, errors.KindNotFound).
			Op("unregister metrics").
			Build())
	}
	r.logger.Debug("runtime closed", zap.Int("handles", len(handles)), zap.Error(err))
	return err
}
