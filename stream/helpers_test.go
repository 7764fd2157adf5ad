package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wippyai/uvcompat/handle"
	"github.com/wippyai/uvcompat/loop"
	"github.com/wippyai/uvcompat/native"
	"github.com/wippyai/uvcompat/resource"
)

type testObserver struct {
	reads, writes, panics int
	readBytes, wroteBytes int
}

func (o *testObserver) OnStreamRead(_ resource.Provider, n int) {
	o.reads++
	o.readBytes += n
}

func (o *testObserver) OnStreamWrite(_ resource.Provider, n int) {
	o.writes++
	o.wroteBytes += n
}

func (o *testObserver) OnConsumerPanic(resource.Provider) {
	o.panics++
}

type harness struct {
	t     *testing.T
	loop  *loop.Loop
	table *resource.Table
	obs   *testObserver
	s     *Stream
	stop  func()
}

// newHarness builds a stream over conn and runs its loop in the background.
func newHarness(t *testing.T, conn native.Conn) *harness {
	t.Helper()
	l := loop.New(loop.DefaultOptions())
	table := resource.NewTable()
	obs := &testObserver{}
	h := handle.New(l, table, resource.ProviderTCPWrap, nil)
	s := New(h, conn, Options{Observer: obs, ReadBufferSize: 16})

	ctx, cancel := context.WithCancel(context.Background())
	l.Ref()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	hs := &harness{t: t, loop: l, table: table, obs: obs, s: s}
	var once sync.Once
	hs.stop = func() {
		once.Do(func() {
			cancel()
			select {
			case err := <-done:
				if err != nil && err != context.Canceled {
					t.Errorf("loop: %v", err)
				}
			case <-time.After(2 * time.Second):
				t.Error("loop did not stop")
			}
		})
	}
	t.Cleanup(hs.stop)
	return hs
}

// do runs fn on the loop goroutine and waits for it.
func (h *harness) do(fn func()) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.loop.Call(ctx, fn); err != nil {
		h.t.Fatalf("loop call: %v", err)
	}
}

// eventually polls cond on the loop until it holds.
func (h *harness) eventually(what string, cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		var ok bool
		h.do(func() { ok = cond() })
		if ok {
			return
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// never checks that cond stays false for a short while.
func (h *harness) never(what string, cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		var ok bool
		h.do(func() { ok = cond() })
		if ok {
			h.t.Fatalf("unexpected: %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
