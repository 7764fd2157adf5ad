package tcp

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/uvcompat/errors"
	"github.com/wippyai/uvcompat/loop"
	"github.com/wippyai/uvcompat/native"
	"github.com/wippyai/uvcompat/status"
)

// Listen starts accepting connections on the bound address, or on an
// ephemeral port of every interface if Bind was not called. The backlog is
// rounded up to the next power of two above the requested value.
func (t *TCP) Listen(backlog int) status.Code {
	if t.OnConnection == nil {
		panic(errors.InvalidCallback(errors.PhaseListen, "Listen"))
	}
	if !t.IsOpen() || t.Conn() != nil {
		return status.EINVAL
	}

	size := ceilPowOf2(min(backlog, maxBacklog) + 1)
	if t.accept != nil {
		t.accept.backlog = size
		return status.OK
	}

	addr := t.bindAddr
	if addr == "" {
		addr = ":0"
	}
	ln, err := t.opts.Network.Listen(context.Background(), t.network, addr)
	if err != nil {
		code := listenStatus(err)
		t.Logger().Debug("listen failed",
			zap.String("addr", addr),
			zap.Stringer("status", code),
			zap.Error(err))
		return code
	}

	t.listener = ln
	t.releaseListen = t.Activate()
	t.accept = &acceptLoop{t: t, backlog: size}
	t.Logger().Debug("listening",
		zap.Stringer("addr", ln.Addr()),
		zap.Int("backlog", size))
	t.accept.next()
	return status.OK
}

func listenStatus(err error) status.Code {
	switch code := status.FromError(err); code {
	case status.EADDRINUSE, status.EADDRNOTAVAIL:
		return code
	}
	return status.UNKNOWN
}

// Backlog returns the effective backlog, or 0 when not listening.
func (t *TCP) Backlog() int {
	if t.accept == nil {
		return 0
	}
	return t.accept.backlog
}

// Connections returns the number of accepted connections still open.
func (t *TCP) Connections() int {
	if t.accept == nil {
		return 0
	}
	return t.accept.conns
}

// acceptLoop accepts one connection at a time until the server closes.
type acceptLoop struct {
	t       *TCP
	timer   *loop.Timer
	backoff acceptBackoff
	backlog int
	conns   int

	accepting bool
	pressure  bool
	stopped   bool
}

func (a *acceptLoop) next() {
	t := a.t
	if a.stopped || !t.IsOpen() || a.accepting || a.timer != nil {
		return
	}
	if a.conns > a.backlog {
		a.pressure = true
		a.wait()
		return
	}

	a.accepting = true
	t.ops.add()
	ln := t.listener
	native.Go(t.Loop(), ln.Accept, a.settle)
}

func (a *acceptLoop) settle(conn native.Conn, err error) {
	t := a.t
	a.accepting = false
	defer t.ops.done()

	if err != nil {
		if a.stopped || !t.IsOpen() {
			return
		}
		if code := status.FromError(err); code.Temporary() {
			t.Logger().Debug("accept failed", zap.Stringer("status", code), zap.Error(err))
		} else {
			t.Logger().Warn("accept failed", zap.Stringer("status", code), zap.Error(err))
		}
		a.report(status.UNKNOWN, nil)
		a.pressure = false
		a.wait()
		return
	}

	if a.stopped || !t.IsOpen() {
		_ = conn.Close()
		return
	}

	a.backoff.reset()
	a.conns++

	client := New(t.Loop(), t.Table(), Socket, t.opts)
	client.attach(conn)
	client.OnClosed(func() {
		a.conns--
		if a.pressure && a.conns <= a.backlog {
			a.resume()
		}
	})

	a.report(status.OK, client)
	a.next()
}

// report hands the result to OnConnection. A panicking callback is logged
// and does not stop the accept loop.
func (a *acceptLoop) report(code status.Code, client *TCP) {
	t := a.t
	if obs := t.opts.Observer; obs != nil {
		obs.OnAccept(code)
	}
	defer func() {
		if r := recover(); r != nil {
			t.Logger().Error("connection callback panicked", zap.Any("panic", r))
		}
	}()
	t.OnConnection(code, client)
}

// wait retries after the next backoff delay.
func (a *acceptLoop) wait() {
	d := a.backoff.next()
	if obs := a.t.opts.Observer; obs != nil {
		obs.OnAcceptBackoff(d)
	}
	a.timer = a.t.Loop().AfterFunc(d, func() {
		a.timer = nil
		a.pressure = false
		a.next()
	})
}

// resume retries at once when back-pressure has eased.
func (a *acceptLoop) resume() {
	a.pressure = false
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.next()
}

func (a *acceptLoop) stop() {
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
