package tcp

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/uvcompat/errors"
	"github.com/wippyai/uvcompat/handle"
	"github.com/wippyai/uvcompat/loop"
	"github.com/wippyai/uvcompat/native"
	"github.com/wippyai/uvcompat/resource"
	"github.com/wippyai/uvcompat/status"
	"github.com/wippyai/uvcompat/stream"
)

// SocketType selects what a TCP handle is created for.
type SocketType uint8

const (
	Socket SocketType = iota
	Server
)

func (t SocketType) String() string {
	if t == Server {
		return "SERVER"
	}
	return "SOCKET"
}

// Bind6 flag restricting a socket to IPv6.
const FlagIPv6Only = 1

// Observer receives accept loop activity. Methods run on the loop goroutine.
type Observer interface {
	OnAccept(code status.Code)
	OnAcceptBackoff(delay time.Duration)
}

// ConnectionFunc receives accepted connections: (OK, client) on success,
// (negative code, nil) when accepting failed.
type ConnectionFunc func(code status.Code, client *TCP)

// Options configures TCP handles. Accepted connections inherit them.
type Options struct {
	// Network opens listeners and outgoing connections. Defaults to native.TCP.
	Network native.Network

	// Stream configures reads on connected sockets.
	Stream stream.Options

	// Observer, if set, is told about accepts and backoff.
	Observer Observer
}

// SockAddr describes a socket address.
type SockAddr struct {
	Address string
	Family  string
	Port    int
}

// TCP is a TCP socket or server handle.
type TCP struct {
	*stream.Stream

	opts     Options
	listener native.Listener
	accept   *acceptLoop
	ops      pendingOps

	// OnConnection is called for every accepted connection. Listen requires it.
	OnConnection ConnectionFunc

	cancelConnect context.CancelFunc
	releaseListen func()

	bindAddr  string
	network   string
	keepAlive time.Duration
	noDelay   *bool
	keepOn    *bool

	typ        SocketType
	connecting bool
}

// New creates an unconnected TCP handle.
func New(l *loop.Loop, table *resource.Table, typ SocketType, opts Options) *TCP {
	if opts.Network == nil {
		opts.Network = native.TCP{}
	}
	provider := resource.ProviderTCPWrap
	if typ == Server {
		provider = resource.ProviderTCPServerWrap
	}

	t := &TCP{
		opts:    opts,
		typ:     typ,
		network: "tcp",
	}
	h := handle.New(l, table, provider, t)
	t.Stream = stream.New(h, nil, opts.Stream)
	h.OnTeardown(t.teardown)
	h.OnDrain(t.ops.wait)
	return t
}

// Type returns the socket type the handle was created with.
func (t *TCP) Type() SocketType { return t.typ }

// Bind records the IPv4 address the handle will listen on or connect from.
func (t *TCP) Bind(addr string, port int) status.Code {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil || strings.Contains(addr, ":") {
		return status.EINVAL
	}
	return t.bind("tcp4", addr, port)
}

// Bind6 records the IPv6 address the handle will listen on or connect from.
// With FlagIPv6Only the socket does not accept IPv4 traffic.
func (t *TCP) Bind6(addr string, port int, flags int) status.Code {
	ip := net.ParseIP(addr)
	if ip == nil || !strings.Contains(addr, ":") {
		return status.EINVAL
	}
	network := "tcp"
	if flags&FlagIPv6Only != 0 {
		network = "tcp6"
	}
	return t.bind(network, addr, port)
}

func (t *TCP) bind(network, addr string, port int) status.Code {
	if port < 0 || port > 65535 {
		return status.EINVAL
	}
	if !t.IsOpen() || t.listener != nil || t.Conn() != nil {
		return status.EINVAL
	}
	t.network = network
	t.bindAddr = net.JoinHostPort(addr, strconv.Itoa(port))
	return status.OK
}

// Open adopts an existing file descriptor. Not supported.
func (t *TCP) Open(fd int) status.Code {
	return status.ENOTSUP
}

// SetNoDelay toggles Nagle's algorithm. Applied on connect if not yet connected.
func (t *TCP) SetNoDelay(enable bool) status.Code {
	t.noDelay = &enable
	return t.applyOptions()
}

// SetKeepAlive toggles TCP keep-alive with the given idle delay.
func (t *TCP) SetKeepAlive(enable bool, delay time.Duration) status.Code {
	t.keepOn = &enable
	t.keepAlive = delay
	return t.applyOptions()
}

func (t *TCP) applyOptions() status.Code {
	conn := t.Conn()
	if conn == nil {
		return status.OK
	}
	if t.noDelay != nil {
		if nd, ok := conn.(native.NoDelayer); ok {
			if err := nd.SetNoDelay(*t.noDelay); err != nil {
				return status.FromError(err)
			}
		}
	}
	if t.keepOn != nil {
		if ka, ok := conn.(native.KeepAliver); ok {
			if err := ka.SetKeepAlive(*t.keepOn); err != nil {
				return status.FromError(err)
			}
			if *t.keepOn && t.keepAlive > 0 {
				if err := ka.SetKeepAlivePeriod(t.keepAlive); err != nil {
					return status.FromError(err)
				}
			}
		}
	}
	return status.OK
}

func (t *TCP) attach(conn native.Conn) {
	t.Attach(conn)
	if code := t.applyOptions(); code != status.OK {
		t.Logger().Debug("socket options not applied", zap.Stringer("status", code))
	}
}

// GetSockName fills out with the local address.
func (t *TCP) GetSockName(out *SockAddr) status.Code {
	switch {
	case t.listener != nil:
		return fillAddr(out, t.listener.Addr())
	case t.Conn() != nil:
		return fillAddr(out, t.Conn().LocalAddr())
	}
	return status.EINVAL
}

// GetPeerName fills out with the remote address.
func (t *TCP) GetPeerName(out *SockAddr) status.Code {
	if t.Conn() == nil {
		return status.ENOTCONN
	}
	return fillAddr(out, t.Conn().RemoteAddr())
}

func fillAddr(out *SockAddr, addr net.Addr) status.Code {
	if out == nil {
		panic(errors.InvalidInput(errors.PhaseBind, "address output must not be nil"))
	}
	if addr == nil {
		return status.EINVAL
	}
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return status.EINVAL
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return status.EINVAL
	}
	out.Address = host
	out.Port = port
	out.Family = "IPv4"
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		out.Family = "IPv6"
	}
	return status.OK
}

// Reset closes the connection abortively: pending data is discarded and the
// peer sees a reset.
func (t *TCP) Reset(cb func()) status.Code {
	if !t.IsOpen() {
		return status.EINVAL
	}
	if l, ok := t.Conn().(native.Lingerer); ok {
		if err := l.SetLinger(0); err != nil {
			t.Logger().Debug("set linger failed", zap.Error(err))
		}
	}
	t.Close(cb)
	return status.OK
}

func (t *TCP) teardown() error {
	if t.cancelConnect != nil {
		t.cancelConnect()
	}
	if t.releaseListen != nil {
		t.releaseListen()
		t.releaseListen = nil
	}
	if t.accept != nil {
		t.accept.stop()
	}
	if t.listener != nil {
		return t.listener.Close()
	}
	return nil
}

// pendingOps counts native operations owned by the TCP layer so that Close
// can wait for them.
type pendingOps struct {
	waiters []func()
	n       int
}

func (p *pendingOps) add() {
	p.n++
}

func (p *pendingOps) done() {
	p.n--
	if p.n > 0 {
		return
	}
	waiters := p.waiters
	p.waiters = nil
	for _, fn := range waiters {
		fn()
	}
}

func (p *pendingOps) wait(fn func()) {
	if p.n == 0 {
		fn()
		return
	}
	p.waiters = append(p.waiters, fn)
}
