// Package stream implements reading, writing and shutdown on a connected handle.
//
// # Reading
//
// ReadStart runs a read loop: each iteration reads into a fresh buffer off the
// loop goroutine and hands the result to the ReadFunc on the loop. Reads on a
// stream are strictly sequential. End of stream is reported as
// (nil, status.EOF) and stops the loop; any other failure is reported with its
// status code and closes the handle. ReadStop prevents the next read but does
// not cancel one already in flight.
//
// # Writing
//
// WriteBuffer returns a status at once and completes the WriteRequest later,
// exactly once. Writes go through a FIFO pipeline that runs one native write
// at a time, so bytes reach the transport in the order they were accepted.
//
//	req := stream.NewWriteRequest(func(code status.Code) {
//	    // runs on the loop goroutine
//	})
//	if code := s.WriteBuffer(req, data); code != status.OK {
//	    // rejected, the callback will not run
//	}
//
// # Shutdown
//
// Shutdown rejects further writes, half-closes the transport after the
// writes already accepted, and completes once every read and write that was
// in flight has settled.
package stream
