package stream

import (
	"go.uber.org/zap"

	"github.com/wippyai/uvcompat/errors"
	"github.com/wippyai/uvcompat/native"
	"github.com/wippyai/uvcompat/status"
)

// SetReadCallback sets the consumer that receives read results.
func (s *Stream) SetReadCallback(fn ReadFunc) {
	s.onRead = fn
}

// ReadStart starts the read loop. A read is issued at once unless one is
// already in flight.
func (s *Stream) ReadStart() status.Code {
	if s.onRead == nil {
		panic(errors.InvalidCallback(errors.PhaseRead, "ReadStart"))
	}
	if !s.IsOpen() {
		return status.EINVAL
	}
	if s.conn == nil {
		return status.ENOTCONN
	}
	s.reading = true
	if s.releaseRead == nil {
		s.releaseRead = s.Activate()
	}
	s.issueRead()
	return status.OK
}

// ReadStop stops the read loop. A read already in flight is not cancelled;
// its data is still delivered.
func (s *Stream) ReadStop() status.Code {
	s.stopReading()
	return status.OK
}

func (s *Stream) stopReading() {
	s.reading = false
	if s.releaseRead != nil {
		s.releaseRead()
		s.releaseRead = nil
	}
}

func (s *Stream) issueRead() {
	if s.readInFlight || !s.reading || !s.IsOpen() {
		return
	}
	s.readInFlight = true

	id := s.reads.add()
	conn := s.conn
	buf := make([]byte, s.readBufSize)

	native.Go(s.Loop(), func() (int, error) {
		return conn.Read(buf)
	}, func(n int, err error) {
		defer s.reads.settle(id)
		s.readInFlight = false
		s.onReadSettled(buf, n, err)
	})
}

func (s *Stream) onReadSettled(buf []byte, n int, err error) {
	if !s.IsOpen() {
		return
	}

	if n > 0 {
		s.bytesRead += uint64(n)
		if s.observer != nil {
			s.observer.OnStreamRead(s.Provider(), n)
		}
		s.deliver(buf[:n:n], n)
		if err == nil {
			s.issueRead()
			return
		}
		if !s.IsOpen() {
			return
		}
	}

	code := status.EOF
	if err != nil {
		code = status.FromError(err)
	}

	s.stopReading()
	s.deliver(nil, int(code))

	if code != status.EOF {
		s.Logger().Debug("read failed, closing handle",
			zap.Stringer("status", code),
			zap.Error(err))
		s.Close(nil)
	}
}

// deliver hands a result to the consumer. A panicking consumer is logged and
// counted; the panic does not propagate.
func (s *Stream) deliver(buf []byte, nread int) {
	if s.onRead == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.Logger().Error("read callback panicked",
				zap.Any("panic", r),
				zap.Int("nread", nread))
			if s.observer != nil {
				s.observer.OnConsumerPanic(s.Provider())
			}
		}
	}()
	if !s.onRead(buf, nread) {
		s.stopReading()
	}
}
