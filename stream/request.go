package stream

import (
	"context"

	"github.com/wippyai/uvcompat/errors"
	"github.com/wippyai/uvcompat/resource"
	"github.com/wippyai/uvcompat/status"
)

// completion is the once-only settlement shared by write and shutdown requests.
type completion struct {
	cb     func(status.Code)
	done   chan struct{}
	status status.Code
	fired  bool
}

func newCompletion(cb func(status.Code)) completion {
	return completion{cb: cb, done: make(chan struct{})}
}

func (c *completion) complete(code status.Code) {
	if c.fired {
		return
	}
	c.fired = true
	c.status = code
	close(c.done)
	c.cb(code)
}

// Done returns a channel closed once the request has completed.
// Safe to use from any goroutine.
func (c *completion) Done() <-chan struct{} { return c.done }

// Status returns the completion status. Only meaningful after Done is closed.
func (c *completion) Status() status.Code { return c.status }

// Wait blocks until the request completes or ctx is done.
func (c *completion) Wait(ctx context.Context) (status.Code, error) {
	select {
	case <-c.done:
		return c.status, nil
	case <-ctx.Done():
		return status.ECANCELED, ctx.Err()
	}
}

// WriteRequest carries one write from WriteBuffer to its completion callback.
type WriteRequest struct {
	completion
	stream *Stream
	buffer []byte
	id     resource.ID

	// Bytes is the payload length, set when the write is accepted.
	Bytes int

	// Async is set once the write has been handed to the write pipeline.
	Async bool
}

// NewWriteRequest creates a write request completing with cb. The callback
// runs on the loop goroutine exactly once.
func NewWriteRequest(cb func(status.Code)) *WriteRequest {
	if cb == nil {
		panic(errors.InvalidCallback(errors.PhaseWrite, "NewWriteRequest"))
	}
	return &WriteRequest{
		completion: newCompletion(cb),
		id:         resource.NewID(),
	}
}

// ID returns the request's async id.
func (r *WriteRequest) ID() resource.ID { return r.id }

// Stream returns the stream the request was issued on, or nil.
func (r *WriteRequest) Stream() *Stream { return r.stream }

// ShutdownRequest carries a Shutdown call to its completion callback.
type ShutdownRequest struct {
	completion
	stream *Stream
	id     resource.ID
}

// NewShutdownRequest creates a shutdown request completing with cb.
func NewShutdownRequest(cb func(status.Code)) *ShutdownRequest {
	if cb == nil {
		panic(errors.InvalidCallback(errors.PhaseShutdown, "NewShutdownRequest"))
	}
	return &ShutdownRequest{
		completion: newCompletion(cb),
		id:         resource.NewID(),
	}
}

// ID returns the request's async id.
func (r *ShutdownRequest) ID() resource.ID { return r.id }

// Stream returns the stream the request was issued on, or nil.
func (r *ShutdownRequest) Stream() *Stream { return r.stream }
