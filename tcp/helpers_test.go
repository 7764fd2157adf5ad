package tcp

import (
	"context"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/uvcompat/loop"
	"github.com/wippyai/uvcompat/native"
	"github.com/wippyai/uvcompat/native/nativetest"
	"github.com/wippyai/uvcompat/resource"
	"github.com/wippyai/uvcompat/status"
)

type testObserver struct {
	accepts  []status.Code
	backoffs []time.Duration
}

func (o *testObserver) OnAccept(code status.Code) {
	o.accepts = append(o.accepts, code)
}

func (o *testObserver) OnAcceptBackoff(d time.Duration) {
	o.backoffs = append(o.backoffs, d)
}

type harness struct {
	t     *testing.T
	loop  *loop.Loop
	clock *fakeclock.FakeClock
	table *resource.Table
	obs   *testObserver
	logs  *observer.ObservedLogs
	net   *nativetest.Network
	opts  Options
}

type connEvent struct {
	code   status.Code
	client *TCP
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fc := fakeclock.NewFakeClock(time.Unix(0, 0))
	core, logs := observer.New(zap.DebugLevel)
	l := loop.New(loop.Options{Clock: fc, Logger: zap.New(core)})
	obs := &testObserver{}
	nw := &nativetest.Network{}
	h := &harness{
		t:     t,
		loop:  l,
		clock: fc,
		table: resource.NewTable(),
		obs:   obs,
		logs:  logs,
		net:   nw,
		opts:  Options{Network: nw, Observer: obs},
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.Ref()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var once sync.Once
	t.Cleanup(func() {
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
	})
	return h
}

// withRealNetwork switches new handles to the operating system's TCP stack.
func (h *harness) withRealNetwork() {
	h.opts.Network = native.TCP{}
}

// server creates a listening server over a scripted listener.
func (h *harness) server(backlog int) (*TCP, *nativetest.Listener, *[]connEvent) {
	h.t.Helper()
	ln := nativetest.NewListener("127.0.0.1:8000")
	h.net.ListenFunc = func(string, string) (native.Listener, error) { return ln, nil }

	var events []connEvent
	var srv *TCP
	h.do(func() {
		srv = New(h.loop, h.table, Server, h.opts)
		srv.OnConnection = func(code status.Code, client *TCP) {
			events = append(events, connEvent{code, client})
		}
		if code := srv.Listen(backlog); code != status.OK {
			h.t.Errorf("Listen = %s", code)
		}
	})
	return srv, ln, &events
}

func (h *harness) do(fn func()) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.loop.Call(ctx, fn); err != nil {
		h.t.Fatalf("loop call: %v", err)
	}
}

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
