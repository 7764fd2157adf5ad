// Package loop implements the event loop every handle runs on.
//
// A Loop is driven by a single goroutine calling Run. All handle state is
// touched only from that goroutine. Work reaches the loop through two queues:
//
//	NextTick / Defer  tick tasks, FIFO, always drained first
//	Post              microtasks, used by native operations to settle results
//
// Each drain runs every tick task, then every microtask, and repeats until
// both queues are empty. Pushing is safe from any goroutine.
//
// # Liveness
//
// Run returns nil once nothing can produce more work: no referenced handles
// (Ref/Unref), no outstanding native operations or timers (Begin, AfterFunc)
// and no queued tasks.
//
//	l := loop.New(loop.DefaultOptions())
//	l.NextTick(func(args ...any) { fmt.Println(args...) }, "hello")
//	if err := l.Run(ctx); err != nil {
//	    // a task panicked or ctx was cancelled
//	}
//
// # Timers
//
// AfterFunc schedules a callback on the loop's clock.Clock, which tests
// replace with a fakeclock.
package loop
