package handle

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/uvcompat/loop"
	"github.com/wippyai/uvcompat/resource"
)

func newTestHandle() (*Handle, *loop.Loop, *resource.Table) {
	l := loop.New(loop.DefaultOptions())
	table := resource.NewTable()
	return New(l, table, resource.ProviderTCPWrap, "owner"), l, table
}

func TestHandle_Registered(t *testing.T) {
	h, _, table := newTestHandle()

	if h.ID() == 0 {
		t.Fatal("handle has reserved id 0")
	}
	v, ok := table.Get(h.ID())
	if !ok || v != "owner" {
		t.Fatalf("table entry = %v, %v", v, ok)
	}
	if h.State() != StateOpen {
		t.Fatalf("state = %s", h.State())
	}
	if !h.HasRef() {
		t.Fatal("new handle should be referenced")
	}
}

func TestHandle_CloseIdempotent(t *testing.T) {
	h, l, table := newTestHandle()

	var teardowns int
	h.OnTeardown(func() error {
		teardowns++
		return errors.New("already closed")
	})

	var release func()
	h.OnDrain(func(done func()) { release = done })

	var order []string
	h.Close(func() { order = append(order, "first") })
	if h.State() != StateClosing {
		t.Fatalf("state after Close = %s, want CLOSING", h.State())
	}

	h.Close(func() { order = append(order, "second") })
	if teardowns != 1 {
		t.Fatalf("teardown ran %d times", teardowns)
	}

	release()
	if h.State() != StateClosed {
		t.Fatalf("state after drain = %s, want CLOSED", h.State())
	}
	if _, ok := table.Get(h.ID()); ok {
		t.Fatal("closed handle still in table")
	}
	select {
	case <-h.Closed():
	default:
		t.Fatal("Closed channel not closed")
	}
	if len(order) != 0 {
		t.Fatal("close callbacks ran synchronously")
	}

	h.Close(func() { order = append(order, "late") })

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"first", "second"}, order); diff != "" {
		t.Errorf("close callbacks (-want +got):\n%s", diff)
	}
}

func TestHandle_CloseWithoutDrain(t *testing.T) {
	h, l, _ := newTestHandle()
	closed := false
	var seen []string
	h.OnClosed(func() { seen = append(seen, "hook") })

	h.Close(func() { closed = true })
	if h.State() != StateClosed {
		t.Fatalf("state = %s", h.State())
	}
	if diff := cmp.Diff([]string{"hook"}, seen); diff != "" {
		t.Errorf("OnClosed hooks (-want +got):\n%s", diff)
	}

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !closed {
		t.Fatal("close callback not delivered")
	}
}

func TestHandle_RefWhileActive(t *testing.T) {
	h, l, _ := newTestHandle()

	if l.Alive() {
		t.Fatal("idle handle keeps loop alive")
	}

	release := h.Activate()
	if !l.Alive() {
		t.Fatal("active referenced handle should keep loop alive")
	}

	h.Unref()
	if l.Alive() {
		t.Fatal("unreferenced handle keeps loop alive")
	}
	h.Unref()
	h.Ref()
	if !l.Alive() {
		t.Fatal("Ref did not restore liveness")
	}

	release()
	release()
	if l.Alive() {
		t.Fatal("released handle keeps loop alive")
	}
}

func TestHandle_ClosingKeepsAlive(t *testing.T) {
	h, l, _ := newTestHandle()
	h.Unref()

	var release func()
	h.OnDrain(func(done func()) { release = done })
	h.Close(nil)

	if !l.Alive() {
		t.Fatal("closing handle should keep loop alive even when unreferenced")
	}
	release()
	if l.Alive() {
		t.Fatal("closed handle keeps loop alive")
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateOpen:    "OPEN",
		StateClosing: "CLOSING",
		StateClosed:  "CLOSED",
		State(9):     "UNKNOWN",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
