package native

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/wippyai/uvcompat/loop"
)

// DefaultBufferSize is the read buffer size used for stream reads.
const DefaultBufferSize = 65536

// Conn is a connected byte stream. Blocking calls are made off the loop
// goroutine; Close makes blocked calls return.
type Conn interface {
	io.ReadWriteCloser
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// HalfCloser is implemented by transports that can shut down their write side.
type HalfCloser interface {
	CloseWrite() error
}

// NoDelayer is implemented by transports with a Nagle toggle.
type NoDelayer interface {
	SetNoDelay(noDelay bool) error
}

// KeepAliver is implemented by transports supporting TCP keep-alive.
type KeepAliver interface {
	SetKeepAlive(keepalive bool) error
	SetKeepAlivePeriod(d time.Duration) error
}

// Lingerer is implemented by transports whose close can be made abortive.
type Lingerer interface {
	SetLinger(sec int) error
}

// Listener accepts connections. Accept blocks until a connection arrives or
// the listener is closed.
type Listener interface {
	Accept() (Conn, error)
	Close() error
	Addr() net.Addr
}

// Network creates listeners and outgoing connections.
type Network interface {
	Listen(ctx context.Context, network, address string) (Listener, error)
	Dial(ctx context.Context, network, local, remote string) (Conn, error)
}

// TCP is the Network backed by the operating system's TCP stack.
type TCP struct {
	// KeepAlive is passed to net.Dialer and net.ListenConfig. Zero keeps the Go default.
	KeepAlive time.Duration
}

// Listen opens a TCP listener. Go gives no control over the kernel backlog,
// so the handle layer enforces its own limit on open connections.
func (n TCP) Listen(ctx context.Context, network, address string) (Listener, error) {
	lc := net.ListenConfig{KeepAlive: n.KeepAlive}
	l, err := lc.Listen(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return netListener{l}, nil
}

// Dial connects to remote, optionally from a bound local address.
func (n TCP) Dial(ctx context.Context, network, local, remote string) (Conn, error) {
	dialer := net.Dialer{KeepAlive: n.KeepAlive}
	if local != "" {
		addr, err := net.ResolveTCPAddr(network, local)
		if err != nil {
			return nil, err
		}
		dialer.LocalAddr = addr
	}
	return dialer.DialContext(ctx, network, remote)
}

type netListener struct {
	net.Listener
}

func (l netListener) Accept() (Conn, error) {
	return l.Listener.Accept()
}

// Go runs op on its own goroutine and settles its result on the loop.
// It does not keep the loop alive: handles do that while they are active,
// and other callers use loop.Begin.
func Go[T any](l *loop.Loop, op func() (T, error), settle func(T, error)) {
	go func() {
		v, err := op()
		l.Post(func() { settle(v, err) })
	}()
}
