package stream

import (
	"bytes"
	"context"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/uvcompat/errors"
	"github.com/wippyai/uvcompat/native/nativetest"
	"github.com/wippyai/uvcompat/status"
)

func TestWriteBuffer_CompletesOnce(t *testing.T) {
	conn := nativetest.NewConn()
	h := newHarness(t, conn)

	var codes []status.Code
	req := NewWriteRequest(func(code status.Code) { codes = append(codes, code) })

	h.do(func() {
		if code := h.s.WriteBuffer(req, []byte("hello")); code != status.OK {
			t.Errorf("WriteBuffer = %s", code)
		}
		if req.Bytes != 5 || !req.Async {
			t.Errorf("request not marked: Bytes=%d Async=%v", req.Bytes, req.Async)
		}
		if req.Stream() != h.s {
			t.Error("request does not point back at its stream")
		}
		if _, ok := h.table.Get(req.ID()); !ok {
			t.Error("pending write not tracked")
		}
	})

	select {
	case <-req.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("write never completed")
	}

	h.never("second completion", func() bool { return len(codes) > 1 })
	h.do(func() {
		if diff := cmp.Diff([]status.Code{status.OK}, codes); diff != "" {
			t.Errorf("completions (-want +got):\n%s", diff)
		}
		if h.s.BytesWritten() != 5 {
			t.Errorf("BytesWritten = %d, want 5", h.s.BytesWritten())
		}
		if h.s.WriteQueueSize() != 0 {
			t.Errorf("WriteQueueSize = %d, want 0", h.s.WriteQueueSize())
		}
		if _, ok := h.table.Get(req.ID()); ok {
			t.Error("completed write still tracked")
		}
		if h.obs.wroteBytes != 5 {
			t.Errorf("observer saw %d bytes", h.obs.wroteBytes)
		}
	})
	if string(conn.Written()) != "hello" {
		t.Errorf("written %q", conn.Written())
	}
}

func TestWriteBuffer_PreservesOrder(t *testing.T) {
	conn := nativetest.NewConn()
	h := newHarness(t, conn)

	const n = 200
	var (
		order []int
		want  []int
		all   bytes.Buffer
	)
	reqs := make([]*WriteRequest, n)

	h.do(func() {
		for i := 0; i < n; i++ {
			i := i
			payload := []byte(strconv.Itoa(i) + ",")
			all.Write(payload)
			want = append(want, i)
			reqs[i] = NewWriteRequest(func(status.Code) { order = append(order, i) })
			if code := h.s.WriteBuffer(reqs[i], payload); code != status.OK {
				t.Errorf("WriteBuffer %d = %s", i, code)
			}
		}
		if h.s.WriteQueueSize() != all.Len() {
			t.Errorf("WriteQueueSize = %d, want %d", h.s.WriteQueueSize(), all.Len())
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if code, err := reqs[n-1].Wait(ctx); err != nil || code != status.OK {
		t.Fatalf("last write: %s, %v", code, err)
	}

	h.do(func() {
		if diff := cmp.Diff(want, order); diff != "" {
			t.Errorf("completion order (-want +got):\n%s", diff)
		}
	})
	if !bytes.Equal(conn.Written(), all.Bytes()) {
		t.Errorf("bytes reordered on the wire")
	}
}

func TestWriteBuffer_Rejections(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		h := newHarness(t, nil)
		h.do(func() {
			req := NewWriteRequest(func(status.Code) { t.Error("rejected write completed") })
			if code := h.s.WriteBuffer(req, []byte("x")); code != status.ENOTCONN {
				t.Errorf("WriteBuffer = %s, want ENOTCONN", code)
			}
		})
	})

	t.Run("after shutdown", func(t *testing.T) {
		h := newHarness(t, nativetest.NewConn())
		h.do(func() {
			h.s.Shutdown(NewShutdownRequest(func(status.Code) {}))
			req := NewWriteRequest(func(status.Code) { t.Error("rejected write completed") })
			if code := h.s.WriteBuffer(req, []byte("x")); code != status.EPIPE {
				t.Errorf("WriteBuffer = %s, want EPIPE", code)
			}
		})
	})

	t.Run("closed", func(t *testing.T) {
		h := newHarness(t, nativetest.NewConn())
		h.do(func() {
			h.s.Close(nil)
			req := NewWriteRequest(func(status.Code) { t.Error("rejected write completed") })
			if code := h.s.WriteBuffer(req, []byte("x")); code != status.EBADF {
				t.Errorf("WriteBuffer = %s, want EBADF", code)
			}
		})
	})
}

func TestWriteBuffer_NativeFailure(t *testing.T) {
	conn := nativetest.NewConn()
	conn.FailWrites(syscall.EPIPE)
	h := newHarness(t, conn)

	req := NewWriteRequest(func(status.Code) {})
	h.do(func() { h.s.WriteBuffer(req, []byte("lost")) })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	code, err := req.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != status.EPIPE {
		t.Errorf("completion = %s, want EPIPE", code)
	}
	h.do(func() {
		if h.s.BytesWritten() != 0 {
			t.Errorf("failed write counted: %d", h.s.BytesWritten())
		}
	})
}

func TestWriteBuffer_CloseFailsPendingWrites(t *testing.T) {
	conn := nativetest.NewConn()
	conn.HoldWrites()
	h := newHarness(t, conn)

	var events []string
	h.do(func() {
		for i := 0; i < 3; i++ {
			req := NewWriteRequest(func(code status.Code) { events = append(events, "write:"+code.Name()) })
			h.s.WriteBuffer(req, []byte("x"))
		}
		h.s.Close(func() { events = append(events, "close") })
	})

	h.eventually("close callback", func() bool { return len(events) == 4 })
	h.do(func() {
		want := []string{"write:EBADF", "write:EBADF", "write:EBADF", "close"}
		if diff := cmp.Diff(want, events); diff != "" {
			t.Errorf("events (-want +got):\n%s", diff)
		}
	})
}

func TestWritev_Concatenates(t *testing.T) {
	conn := nativetest.NewConn()
	h := newHarness(t, conn)

	req := NewWriteRequest(func(status.Code) {})
	h.do(func() {
		h.s.Writev(req, [][]byte{[]byte("ab"), nil, []byte("cd"), []byte("e")})
		if req.Bytes != 5 {
			t.Errorf("Bytes = %d, want 5", req.Bytes)
		}
	})
	<-req.Done()
	if string(conn.Written()) != "abcde" {
		t.Errorf("written %q", conn.Written())
	}
	if conn.Writes() != 1 {
		t.Errorf("Writev issued %d native writes", conn.Writes())
	}
}

func TestNewWriteRequest_NilCallbackPanics(t *testing.T) {
	defer func() {
		e, ok := recover().(*errors.Error)
		if !ok || e.Kind != errors.KindInvalidCallback || e.Phase != errors.PhaseWrite {
			t.Fatalf("recovered %v, want invalid callback error", e)
		}
	}()
	NewWriteRequest(nil)
}
