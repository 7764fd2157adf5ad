package tcp

import (
	"context"
	"net"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/uvcompat/errors"
	"github.com/wippyai/uvcompat/native"
	"github.com/wippyai/uvcompat/resource"
	"github.com/wippyai/uvcompat/status"
)

// ConnectFunc receives the outcome of a connect. readable and writable are
// true once the socket is connected.
type ConnectFunc func(code status.Code, handle *TCP, req *ConnectRequest, readable, writable bool)

// ConnectRequest carries one Connect call to its completion callback.
type ConnectRequest struct {
	cb     ConnectFunc
	done   chan struct{}
	id     resource.ID
	status status.Code
	fired  bool

	Address string
	Port    int
}

// NewConnectRequest creates a connect request completing with cb.
func NewConnectRequest(cb ConnectFunc) *ConnectRequest {
	if cb == nil {
		panic(errors.InvalidCallback(errors.PhaseConnect, "NewConnectRequest"))
	}
	return &ConnectRequest{
		cb:   cb,
		done: make(chan struct{}),
		id:   resource.NewID(),
	}
}

// ID returns the request's async id.
func (r *ConnectRequest) ID() resource.ID { return r.id }

// Done returns a channel closed once the request has completed.
func (r *ConnectRequest) Done() <-chan struct{} { return r.done }

// Status returns the completion status. Only meaningful after Done is closed.
func (r *ConnectRequest) Status() status.Code { return r.status }

func (r *ConnectRequest) complete(code status.Code, t *TCP) {
	if r.fired {
		return
	}
	r.fired = true
	r.status = code
	close(r.done)
	ok := code == status.OK
	r.cb(code, t, r, ok, ok)
}

// Connect starts connecting to an IPv4 address.
func (t *TCP) Connect(req *ConnectRequest, addr string, port int) status.Code {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil || strings.Contains(addr, ":") {
		return status.EINVAL
	}
	return t.connect(req, "tcp4", addr, port)
}

// Connect6 starts connecting to an IPv6 address.
func (t *TCP) Connect6(req *ConnectRequest, addr string, port int) status.Code {
	if ip := net.ParseIP(addr); ip == nil || !strings.Contains(addr, ":") {
		return status.EINVAL
	}
	return t.connect(req, "tcp6", addr, port)
}

func (t *TCP) connect(req *ConnectRequest, network, addr string, port int) status.Code {
	if req == nil {
		panic(errors.InvalidCallback(errors.PhaseConnect, "Connect"))
	}
	if port <= 0 || port > 65535 {
		return status.EINVAL
	}
	switch {
	case !t.IsOpen() || t.listener != nil:
		return status.EINVAL
	case t.connecting:
		return status.EALREADY
	case t.Conn() != nil:
		return status.EISCONN
	}

	req.Address = addr
	req.Port = port
	remote := net.JoinHostPort(addr, strconv.Itoa(port))
	local := t.bindAddr

	ctx, cancel := context.WithCancel(context.Background())
	t.cancelConnect = cancel
	t.connecting = true
	t.ops.add()
	release := t.Activate()
	t.Table().Track(req.id, resource.ProviderTCPConnectWrap, req)

	nw := t.opts.Network
	native.Go(t.Loop(), func() (native.Conn, error) {
		return nw.Dial(ctx, network, local, remote)
	}, func(conn native.Conn, err error) {
		defer t.ops.done()
		defer release()
		cancel()
		t.cancelConnect = nil
		t.connecting = false
		t.Table().Remove(req.id)

		if !t.IsOpen() {
			if conn != nil {
				_ = conn.Close()
			}
			req.complete(status.ECANCELED, t)
			return
		}
		if err != nil {
			code := connectStatus(err)
			t.Logger().Debug("connect failed",
				zap.String("remote", remote),
				zap.Stringer("status", code),
				zap.Error(err))
			req.complete(code, t)
			return
		}

		t.attach(conn)
		req.complete(status.OK, t)
	})
	return status.OK
}

// connectStatus maps a dial failure. Failures without a more specific code
// are reported as a refused connection.
func connectStatus(err error) status.Code {
	code := status.FromError(err)
	if code == status.UNKNOWN {
		return status.ECONNREFUSED
	}
	return code
}
