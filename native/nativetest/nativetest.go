// Package nativetest provides scripted in-memory transports for tests.
package nativetest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/wippyai/uvcompat/native"
)

// Addr is a fixed net.Addr.
type Addr string

func (a Addr) Network() string { return "tcp" }
func (a Addr) String() string  { return string(a) }

type readResult struct {
	err  error
	data []byte
}

// Conn is a scripted connection. Reads return what the test feeds; writes
// are recorded and can be held until the test releases them.
type Conn struct {
	local  net.Addr
	remote net.Addr

	reads  chan readResult
	closed chan struct{}
	gate   chan struct{}

	rest []byte

	written    bytes.Buffer
	writeErr   error
	closeErr   error
	halfErr    error
	writes     int
	halfClosed bool
	lingerSec  int
	noDelay    bool

	closeOnce sync.Once
	mu        sync.Mutex
}

var _ native.Conn = (*Conn)(nil)

// NewConn returns an open scripted connection.
func NewConn() *Conn {
	return &Conn{
		local:     Addr("127.0.0.1:1000"),
		remote:    Addr("127.0.0.1:2000"),
		reads:     make(chan readResult, 64),
		closed:    make(chan struct{}),
		lingerSec: -1,
	}
}

// Feed makes data available to the next Read.
func (c *Conn) Feed(data []byte) {
	c.reads <- readResult{data: append([]byte(nil), data...)}
}

// FeedEOF makes the next Read report end of stream.
func (c *Conn) FeedEOF() {
	c.reads <- readResult{err: io.EOF}
}

// FeedError makes the next Read fail with err.
func (c *Conn) FeedError(err error) {
	c.reads <- readResult{err: err}
}

// HoldWrites makes every subsequent Write block until ReleaseWrite is called.
// Call it before the first write is issued.
func (c *Conn) HoldWrites() {
	c.mu.Lock()
	c.gate = make(chan struct{})
	c.mu.Unlock()
}

// ReleaseWrite lets one held Write complete. It blocks until a writer takes it.
func (c *Conn) ReleaseWrite() {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		gate <- struct{}{}
	}
}

// FailWrites makes every subsequent Write fail with err.
func (c *Conn) FailWrites(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

// FailClose makes Close and CloseWrite return err.
func (c *Conn) FailClose(err error) {
	c.mu.Lock()
	c.closeErr = err
	c.halfErr = err
	c.mu.Unlock()
}

func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	if len(c.rest) > 0 {
		n := copy(p, c.rest)
		c.rest = c.rest[n:]
		c.mu.Unlock()
		return n, nil
	}
	c.mu.Unlock()

	select {
	case r := <-c.reads:
		if r.err != nil {
			return 0, r.err
		}
		n := copy(p, r.data)
		if n < len(r.data) {
			c.mu.Lock()
			c.rest = r.data[n:]
			c.mu.Unlock()
		}
		return n, nil
	case <-c.closed:
		return 0, net.ErrClosed
	}
}

func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-c.closed:
			return 0, net.ErrClosed
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	if c.halfClosed || c.isClosed() {
		return 0, net.ErrClosed
	}
	c.writes++
	return c.written.Write(p)
}

// CloseWrite half-closes the connection.
func (c *Conn) CloseWrite() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.halfErr != nil {
		return c.halfErr
	}
	if c.isClosed() {
		return net.ErrClosed
	}
	c.halfClosed = true
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	err := c.closeErr
	c.mu.Unlock()

	already := true
	c.closeOnce.Do(func() {
		already = false
		close(c.closed)
	})
	if already {
		return net.ErrClosed
	}
	return err
}

func (c *Conn) SetNoDelay(noDelay bool) error {
	c.mu.Lock()
	c.noDelay = noDelay
	c.mu.Unlock()
	return nil
}

func (c *Conn) SetLinger(sec int) error {
	c.mu.Lock()
	c.lingerSec = sec
	c.mu.Unlock()
	return nil
}

func (c *Conn) LocalAddr() net.Addr  { return c.local }
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

// Written returns a copy of everything written so far.
func (c *Conn) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.written.Bytes()...)
}

// Writes returns the number of successful Write calls.
func (c *Conn) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	return c.isClosed()
}

// HalfClosed reports whether CloseWrite succeeded.
func (c *Conn) HalfClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halfClosed
}

// Linger returns the last SetLinger value, or -1.
func (c *Conn) Linger() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lingerSec
}

// NoDelay returns the last SetNoDelay value.
func (c *Conn) NoDelay() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.noDelay
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// PlainConn hides the optional interfaces of a Conn, leaving only native.Conn.
type PlainConn struct {
	native.Conn
}

type acceptResult struct {
	conn native.Conn
	err  error
}

// Listener is a scripted listener. Accept returns queued connections and
// errors in order and blocks when none are queued.
type Listener struct {
	addr    net.Addr
	queue   chan acceptResult
	closed  chan struct{}
	once    sync.Once
	accepts int
	mu      sync.Mutex
}

var _ native.Listener = (*Listener)(nil)

// NewListener returns an open listener at addr.
func NewListener(addr string) *Listener {
	return &Listener{
		addr:   Addr(addr),
		queue:  make(chan acceptResult, 64),
		closed: make(chan struct{}),
	}
}

// Push queues a connection for Accept.
func (l *Listener) Push(c native.Conn) {
	l.queue <- acceptResult{conn: c}
}

// PushError queues an Accept failure.
func (l *Listener) PushError(err error) {
	l.queue <- acceptResult{err: err}
}

func (l *Listener) Accept() (native.Conn, error) {
	select {
	case <-l.closed:
		return nil, net.ErrClosed
	default:
	}
	select {
	case r := <-l.queue:
		if r.err == nil {
			l.mu.Lock()
			l.accepts++
			l.mu.Unlock()
		}
		return r.conn, r.err
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *Listener) Close() error {
	err := net.ErrClosed
	l.once.Do(func() {
		err = nil
		close(l.closed)
	})
	return err
}

func (l *Listener) Addr() net.Addr { return l.addr }

// Accepted returns the number of successful Accept calls.
func (l *Listener) Accepted() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accepts
}

// Network is a scripted native.Network. Listen and Dial consult the
// registered functions; unset functions fail.
type Network struct {
	ListenFunc func(network, address string) (native.Listener, error)
	DialFunc   func(ctx context.Context, network, local, remote string) (native.Conn, error)
}

var _ native.Network = (*Network)(nil)

// ErrNotScripted is returned by Network methods with no function set.
var ErrNotScripted = errors.New("nativetest: operation not scripted")

func (n *Network) Listen(_ context.Context, network, address string) (native.Listener, error) {
	if n.ListenFunc == nil {
		return nil, ErrNotScripted
	}
	return n.ListenFunc(network, address)
}

func (n *Network) Dial(ctx context.Context, network, local, remote string) (native.Conn, error) {
	if n.DialFunc == nil {
		return nil, ErrNotScripted
	}
	return n.DialFunc(ctx, network, local, remote)
}
