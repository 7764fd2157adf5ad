package stream

import (
	"go.uber.org/zap"

	"github.com/wippyai/uvcompat/errors"
	"github.com/wippyai/uvcompat/native"
	"github.com/wippyai/uvcompat/resource"
	"github.com/wippyai/uvcompat/status"
)

// pipelineOp is one native operation waiting its turn in the write pipeline.
type pipelineOp struct {
	exec func() error
	done func(err error)
}

// writable returns the code a new write is rejected with, or OK.
func (s *Stream) writable() status.Code {
	switch {
	case !s.IsOpen():
		return status.EBADF
	case s.shuttingDown:
		return status.EPIPE
	case s.conn == nil:
		return status.ENOTCONN
	}
	return status.OK
}

// WriteBuffer queues data for writing and returns at once. On OK the request
// completes later, exactly once; on a negative code it never completes.
// data is retained until the request completes and must not be modified.
func (s *Stream) WriteBuffer(req *WriteRequest, data []byte) status.Code {
	if req == nil {
		panic(errors.InvalidCallback(errors.PhaseWrite, "WriteBuffer"))
	}
	if code := s.writable(); code != status.OK {
		return code
	}

	req.stream = s
	req.buffer = data
	req.Bytes = len(data)
	req.Async = true

	id := s.writes.add()
	release := s.Activate()
	s.writeQueueSize += len(data)
	s.Table().Track(req.id, resource.ProviderWriteWrap, req)

	conn := s.conn
	s.enqueue(&pipelineOp{
		exec: func() error {
			_, err := conn.Write(data)
			return err
		},
		done: func(err error) {
			defer s.writes.settle(id)
			defer release()

			s.writeQueueSize -= len(data)
			s.Table().Remove(req.id)
			req.buffer = nil

			code := status.OK
			if err != nil {
				code = status.FromError(err)
				s.Logger().Debug("write failed",
					zap.Int("bytes", len(data)),
					zap.Stringer("status", code),
					zap.Error(err))
			} else {
				s.bytesWritten += uint64(len(data))
				if s.observer != nil {
					s.observer.OnStreamWrite(s.Provider(), len(data))
				}
			}
			req.complete(code)
		},
	})
	return status.OK
}

// Writev writes chunks as one contiguous write.
func (s *Stream) Writev(req *WriteRequest, chunks [][]byte) status.Code {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c...)
	}
	return s.WriteBuffer(req, data)
}

func (s *Stream) enqueue(op *pipelineOp) {
	s.pipeline.Add(op)
	s.pump()
}

// pump starts the next pipeline operation unless one is in flight. Go gives
// no ordering between concurrent writes on one connection, so the pipeline
// runs one native operation at a time.
func (s *Stream) pump() {
	if s.writing || s.pipeline.Length() == 0 {
		return
	}
	op := s.pipeline.Remove().(*pipelineOp)
	s.writing = true

	native.Go(s.Loop(), func() (struct{}, error) {
		return struct{}{}, op.exec()
	}, func(_ struct{}, err error) {
		s.writing = false
		defer s.pump()
		op.done(err)
	})
}
