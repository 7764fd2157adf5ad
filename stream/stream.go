package stream

import (
	"github.com/eapache/queue"

	"github.com/wippyai/uvcompat/handle"
	"github.com/wippyai/uvcompat/native"
	"github.com/wippyai/uvcompat/resource"
)

// ReadFunc receives read results. nread is the number of bytes in buf, or a
// negative status code with a nil buf. Returning false stops reading.
type ReadFunc func(buf []byte, nread int) bool

// Observer receives stream activity. Methods run on the loop goroutine.
type Observer interface {
	OnStreamRead(provider resource.Provider, n int)
	OnStreamWrite(provider resource.Provider, n int)
	OnConsumerPanic(provider resource.Provider)
}

// Options configures a Stream.
type Options struct {
	// ReadBufferSize is the size of each read. Defaults to native.DefaultBufferSize.
	ReadBufferSize int

	// Observer, if set, is told about reads, writes and consumer panics.
	Observer Observer
}

// Stream adds reading, writing and shutdown to a handle that owns a
// connected native transport.
type Stream struct {
	*handle.Handle

	conn     native.Conn
	observer Observer
	onRead   ReadFunc

	pipeline    *queue.Queue
	releaseRead func()

	reads     tracker
	writes    tracker
	shutdowns tracker

	bytesRead      uint64
	bytesWritten   uint64
	writeQueueSize int
	readBufSize    int

	reading      bool
	readInFlight bool
	writing      bool
	shuttingDown bool
}

// New builds a stream on h. conn may be nil and attached later.
func New(h *handle.Handle, conn native.Conn, opts Options) *Stream {
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = native.DefaultBufferSize
	}
	s := &Stream{
		Handle:      h,
		conn:        conn,
		observer:    opts.Observer,
		pipeline:    queue.New(),
		readBufSize: opts.ReadBufferSize,
	}
	h.OnTeardown(s.teardown)
	h.OnDrain(func(done func()) {
		waitAll(done, &s.reads, &s.writes, &s.shutdowns)
	})
	return s
}

// Attach hands a connected transport to the stream.
func (s *Stream) Attach(conn native.Conn) {
	s.conn = conn
}

// Conn returns the native transport, or nil if not connected.
func (s *Stream) Conn() native.Conn { return s.conn }

// BytesRead returns the number of bytes delivered to the read callback.
func (s *Stream) BytesRead() uint64 { return s.bytesRead }

// BytesWritten returns the number of bytes whose write has succeeded.
func (s *Stream) BytesWritten() uint64 { return s.bytesWritten }

// WriteQueueSize returns the number of bytes accepted but not yet settled.
func (s *Stream) WriteQueueSize() int { return s.writeQueueSize }

// IsReading reports whether the read loop is running.
func (s *Stream) IsReading() bool { return s.reading }

func (s *Stream) teardown() error {
	s.stopReading()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
