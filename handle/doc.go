// Package handle implements the lifecycle shared by every stream and socket.
//
// A handle moves OPEN → CLOSING → CLOSED and never back. Close is
// idempotent: the first call runs the teardown hooks registered by the
// embedding layer (closing the native transport makes its blocked operations
// return), waits for every drain hook to report that in-flight work has
// settled, then removes the handle from the resource table and delivers the
// close callbacks on a later tick.
//
// A referenced handle keeps its loop alive while it has outstanding work
// (Activate) and while it is closing.
package handle
