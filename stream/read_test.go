package stream

import (
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/uvcompat/handle"
	"github.com/wippyai/uvcompat/native/nativetest"
	"github.com/wippyai/uvcompat/status"
)

type readLog struct {
	chunks []string
	codes  []int
}

func (r *readLog) consumer(keepReading func() bool) ReadFunc {
	return func(buf []byte, nread int) bool {
		if nread > 0 {
			r.chunks = append(r.chunks, string(buf))
		} else {
			r.codes = append(r.codes, nread)
		}
		return keepReading == nil || keepReading()
	}
}

func TestRead_DeliversInOrderThenEOF(t *testing.T) {
	conn := nativetest.NewConn()
	h := newHarness(t, conn)
	var log readLog

	h.do(func() {
		h.s.SetReadCallback(log.consumer(nil))
		if code := h.s.ReadStart(); code != status.OK {
			t.Errorf("ReadStart = %s", code)
		}
	})

	conn.Feed([]byte("abc"))
	conn.Feed([]byte("defgh"))
	conn.FeedEOF()

	h.eventually("EOF", func() bool { return len(log.codes) == 1 })
	h.do(func() {
		if diff := cmp.Diff([]string{"abc", "defgh"}, log.chunks); diff != "" {
			t.Errorf("chunks (-want +got):\n%s", diff)
		}
		if log.codes[0] != int(status.EOF) {
			t.Errorf("final code = %d, want EOF", log.codes[0])
		}
		if h.s.BytesRead() != 8 {
			t.Errorf("BytesRead = %d, want 8", h.s.BytesRead())
		}
		if h.s.IsReading() {
			t.Error("still reading after EOF")
		}
		if h.s.State() != handle.StateOpen {
			t.Errorf("EOF closed the handle: %s", h.s.State())
		}
		if h.obs.readBytes != 8 {
			t.Errorf("observer saw %d bytes", h.obs.readBytes)
		}
	})
}

func TestRead_LargeChunkSplitByBufferSize(t *testing.T) {
	conn := nativetest.NewConn()
	h := newHarness(t, conn)
	var log readLog

	h.do(func() {
		h.s.SetReadCallback(log.consumer(nil))
		h.s.ReadStart()
	})
	conn.Feed([]byte("0123456789abcdefXYZ"))

	h.eventually("two chunks", func() bool { return len(log.chunks) == 2 })
	h.do(func() {
		if diff := cmp.Diff([]string{"0123456789abcdef", "XYZ"}, log.chunks); diff != "" {
			t.Errorf("chunks (-want +got):\n%s", diff)
		}
	})
}

func TestRead_StopFromConsumer(t *testing.T) {
	conn := nativetest.NewConn()
	h := newHarness(t, conn)
	var log readLog

	h.do(func() {
		h.s.SetReadCallback(log.consumer(func() bool { return false }))
		h.s.ReadStart()
	})
	conn.Feed([]byte("one"))
	conn.Feed([]byte("two"))

	h.eventually("first chunk", func() bool { return len(log.chunks) == 1 })
	h.never("second chunk delivered after stop", func() bool { return len(log.chunks) > 1 })
	h.do(func() {
		if h.s.BytesRead() != 3 {
			t.Errorf("BytesRead = %d, want 3", h.s.BytesRead())
		}
		if h.s.IsReading() {
			t.Error("consumer returning false did not stop reading")
		}
	})

	// restarting picks up where the stream left off
	h.do(func() {
		h.s.SetReadCallback(log.consumer(nil))
		h.s.ReadStart()
	})
	h.eventually("second chunk", func() bool { return len(log.chunks) == 2 })
}

func TestRead_StopDeliversInFlight(t *testing.T) {
	conn := nativetest.NewConn()
	h := newHarness(t, conn)
	var log readLog

	h.do(func() {
		h.s.SetReadCallback(log.consumer(nil))
		h.s.ReadStart()
		h.s.ReadStop()
	})
	conn.Feed([]byte("late"))

	h.eventually("in-flight read delivered", func() bool { return len(log.chunks) == 1 })
	conn.Feed([]byte("more"))
	h.never("read issued after ReadStop", func() bool { return len(log.chunks) > 1 })
}

func TestRead_ErrorClosesHandle(t *testing.T) {
	conn := nativetest.NewConn()
	h := newHarness(t, conn)
	var log readLog

	h.do(func() {
		h.s.SetReadCallback(log.consumer(nil))
		h.s.ReadStart()
	})
	conn.FeedError(syscall.ECONNRESET)

	h.eventually("handle closed", func() bool { return h.s.State() == handle.StateClosed })
	h.do(func() {
		if diff := cmp.Diff([]int{int(status.ECONNRESET)}, log.codes); diff != "" {
			t.Errorf("codes (-want +got):\n%s", diff)
		}
		if !conn.Closed() {
			t.Error("native conn not closed")
		}
		if h.table.Len() != 0 {
			t.Errorf("table still has %d entries", h.table.Len())
		}
	})
}

func TestRead_ConsumerPanicRecovered(t *testing.T) {
	conn := nativetest.NewConn()
	h := newHarness(t, conn)
	var got []string

	h.do(func() {
		h.s.SetReadCallback(func(buf []byte, nread int) bool {
			got = append(got, string(buf))
			if len(got) == 1 {
				panic("consumer bug")
			}
			return true
		})
		h.s.ReadStart()
	})
	conn.Feed([]byte("a"))
	conn.Feed([]byte("b"))

	h.eventually("second chunk", func() bool { return len(got) == 2 })
	h.do(func() {
		if h.obs.panics != 1 {
			t.Errorf("observer counted %d panics", h.obs.panics)
		}
		if !h.s.IsOpen() || !h.s.IsReading() {
			t.Error("consumer panic disturbed the stream")
		}
	})
}

func TestRead_CloseWhileReading(t *testing.T) {
	conn := nativetest.NewConn()
	h := newHarness(t, conn)
	var log readLog
	closed := false

	h.do(func() {
		h.s.SetReadCallback(log.consumer(nil))
		h.s.ReadStart()
		h.s.Close(func() { closed = true })
	})

	h.eventually("close callback", func() bool { return closed })
	h.do(func() {
		if len(log.chunks)+len(log.codes) != 0 {
			t.Errorf("consumer called after close: %+v", log)
		}
		if code := h.s.ReadStart(); code != status.EINVAL {
			t.Errorf("ReadStart on closed stream = %s", code)
		}
	})
}

func TestRead_NotConnected(t *testing.T) {
	h := newHarness(t, nil)
	h.do(func() {
		h.s.SetReadCallback(func([]byte, int) bool { return true })
		if code := h.s.ReadStart(); code != status.ENOTCONN {
			t.Errorf("ReadStart = %s, want ENOTCONN", code)
		}
	})
}
