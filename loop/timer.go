package loop

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	timerArmed int32 = iota
	timerFired
	timerStopped
)

// Timer is a one-shot callback scheduled with AfterFunc.
type Timer struct {
	cancel chan struct{}
	done   func()
	stop   sync.Once
	state  atomic.Int32
}

// AfterFunc runs fn on the loop once d has elapsed on the loop's clock.
// A pending timer keeps the loop alive.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{
		cancel: make(chan struct{}),
		done:   l.Begin(),
	}
	ct := l.clock.NewTimer(d)

	go func() {
		select {
		case <-ct.C():
			l.Post(func() {
				if t.state.CompareAndSwap(timerArmed, timerFired) {
					t.done()
					fn()
				}
			})
		case <-t.cancel:
			ct.Stop()
		}
	}()

	return t
}

// Stop cancels the timer. It reports whether the call prevented fn from running.
func (t *Timer) Stop() bool {
	if !t.state.CompareAndSwap(timerArmed, timerStopped) {
		return false
	}
	t.stop.Do(func() { close(t.cancel) })
	t.done()
	return true
}
