// Package status defines the numeric status-code vocabulary shared by every handle
// operation and completion callback.
//
// Codes follow libuv's convention: 0 means success and negative values identify an
// error class. Synchronous results and asynchronous callbacks use the same vocabulary.
//
// FromError maps errors produced by the Go net package (net.OpError, syscall.Errno,
// io.EOF, net.ErrClosed, timeouts) onto codes.
package status
