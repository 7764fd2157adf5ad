// Package native is the host transport the handles sit on.
//
// Native operations block, so they never run on the loop goroutine. Go starts
// one in its own goroutine and posts the result back to the loop, where the
// handle layer settles it:
//
//	native.Go(l, func() (int, error) {
//	    return conn.Write(data)
//	}, func(n int, err error) {
//	    // runs on the loop goroutine
//	})
//
// TCP implements Network with the standard library's net package. The
// nativetest package provides scripted fakes for tests.
package native
