package stream

import (
	"go.uber.org/zap"

	"github.com/wippyai/uvcompat/errors"
	"github.com/wippyai/uvcompat/native"
	"github.com/wippyai/uvcompat/resource"
	"github.com/wippyai/uvcompat/status"
)

var errNotConnected = status.ENOTCONN.Err()

// Shutdown closes the write side of the stream. New writes are rejected at
// once. The native half-close runs after every write already accepted; the
// request then completes once all reads and writes in flight at that point
// have settled.
func (s *Stream) Shutdown(req *ShutdownRequest) status.Code {
	if req == nil {
		panic(errors.InvalidCallback(errors.PhaseShutdown, "Shutdown"))
	}
	if !s.IsOpen() || s.shuttingDown {
		return status.EINVAL
	}

	s.shuttingDown = true
	req.stream = s

	id := s.shutdowns.add()
	release := s.Activate()
	s.Table().Track(req.id, resource.ProviderShutdownWrap, req)

	conn := s.conn
	s.enqueue(&pipelineOp{
		exec: func() error {
			if conn == nil {
				return errNotConnected
			}
			if hc, ok := conn.(native.HalfCloser); ok {
				return hc.CloseWrite()
			}
			return conn.Close()
		},
		done: func(err error) {
			code := shutdownStatus(err)
			if err != nil {
				s.Logger().Debug("shutdown failed",
					zap.Stringer("status", code),
					zap.Error(err))
			}
			waitAll(func() {
				defer s.shutdowns.settle(id)
				defer release()
				s.Table().Remove(req.id)
				req.complete(code)
			}, &s.reads, &s.writes)
		},
	})
	return status.OK
}

// shutdownStatus maps a half-close failure. Closing a transport that was
// never connected or is already closed reports ENOTCONN.
func shutdownStatus(err error) status.Code {
	if err == nil {
		return status.OK
	}
	code := status.FromError(err)
	if code == status.EBADF {
		return status.ENOTCONN
	}
	return code
}
