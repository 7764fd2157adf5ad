package stream

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/uvcompat/native/nativetest"
	"github.com/wippyai/uvcompat/status"
)

func TestShutdown_WaitsForInFlight(t *testing.T) {
	conn := nativetest.NewConn()
	conn.HoldWrites()
	h := newHarness(t, conn)

	const writes = 3
	var events []string
	sreq := NewShutdownRequest(func(code status.Code) { events = append(events, "shutdown:"+code.Name()) })

	h.do(func() {
		h.s.SetReadCallback(func(buf []byte, nread int) bool {
			events = append(events, "read:"+status.Code(nread).Name())
			return true
		})
		h.s.ReadStart()
		for i := 0; i < writes; i++ {
			req := NewWriteRequest(func(code status.Code) { events = append(events, "write:"+code.Name()) })
			h.s.WriteBuffer(req, []byte("x"))
		}
		if code := h.s.Shutdown(sreq); code != status.OK {
			t.Errorf("Shutdown = %s", code)
		}
		if code := h.s.Shutdown(NewShutdownRequest(func(status.Code) {})); code != status.EINVAL {
			t.Errorf("second Shutdown = %s, want EINVAL", code)
		}
	})

	for i := 0; i < writes; i++ {
		conn.ReleaseWrite()
	}

	h.eventually("half-close", conn.HalfClosed)
	h.never("shutdown completed with a read in flight", func() bool {
		select {
		case <-sreq.Done():
			return true
		default:
			return false
		}
	})

	conn.FeedEOF()
	h.eventually("shutdown completion", func() bool { return len(events) == writes+2 })

	want := []string{"write:OK", "write:OK", "write:OK", "read:EOF", "shutdown:OK"}
	h.do(func() {
		if diff := cmp.Diff(want, events); diff != "" {
			t.Errorf("events (-want +got):\n%s", diff)
		}
		if h.table.Len() != 1 {
			t.Errorf("table has %d entries, want only the stream", h.table.Len())
		}
		if !h.s.IsOpen() {
			t.Error("shutdown closed the handle")
		}
	})
	if string(conn.Written()) != "xxx" {
		t.Errorf("written %q", conn.Written())
	}
}

func TestShutdown_NotConnected(t *testing.T) {
	h := newHarness(t, nil)
	req := NewShutdownRequest(func(status.Code) {})
	h.do(func() {
		if code := h.s.Shutdown(req); code != status.OK {
			t.Errorf("Shutdown = %s", code)
		}
	})
	<-req.Done()
	if req.Status() != status.ENOTCONN {
		t.Errorf("completion = %s, want ENOTCONN", req.Status())
	}
}

func TestShutdown_AlreadyClosedTransport(t *testing.T) {
	conn := nativetest.NewConn()
	conn.Close()
	h := newHarness(t, conn)

	req := NewShutdownRequest(func(status.Code) {})
	h.do(func() { h.s.Shutdown(req) })
	<-req.Done()
	if req.Status() != status.ENOTCONN {
		t.Errorf("completion = %s, want ENOTCONN", req.Status())
	}
}

func TestShutdown_NativeFailure(t *testing.T) {
	conn := nativetest.NewConn()
	conn.FailClose(errors.New("stack on fire"))
	h := newHarness(t, conn)

	req := NewShutdownRequest(func(status.Code) {})
	h.do(func() { h.s.Shutdown(req) })
	<-req.Done()
	if req.Status() != status.UNKNOWN {
		t.Errorf("completion = %s, want UNKNOWN", req.Status())
	}
}

func TestShutdown_WithoutHalfClose(t *testing.T) {
	conn := nativetest.NewConn()
	h := newHarness(t, nativetest.PlainConn{Conn: conn})

	req := NewShutdownRequest(func(status.Code) {})
	h.do(func() { h.s.Shutdown(req) })
	<-req.Done()
	if req.Status() != status.OK {
		t.Errorf("completion = %s", req.Status())
	}
	if !conn.Closed() {
		t.Error("transport without half-close was not closed")
	}
}

func TestShutdown_ClosedHandle(t *testing.T) {
	h := newHarness(t, nativetest.NewConn())
	h.do(func() {
		h.s.Close(nil)
		if code := h.s.Shutdown(NewShutdownRequest(func(status.Code) {})); code != status.EINVAL {
			t.Errorf("Shutdown = %s, want EINVAL", code)
		}
	})
}
