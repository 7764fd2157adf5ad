// Package tcp implements TCP socket and server handles on top of package stream.
//
// A server is created with New(..., tcp.Server, ...), optionally bound with
// Bind or Bind6, and started with Listen. Listening itself is synchronous; the
// accept loop then runs one native accept at a time:
//
//   - a successful accept resets the backoff, counts the connection and hands
//     a new Socket handle to OnConnection
//   - a failure while the server is open is reported as (UNKNOWN, nil) and
//     retried after a delay of 5ms, doubling up to 1s
//   - a failure after Close stops the loop without a report
//
// The backlog passed to Listen is rounded up to the next power of two above
// it and caps the number of accepted connections that may be open before the
// loop waits for one of them to close.
//
//	srv := tcp.New(l, table, tcp.Server, tcp.Options{})
//	srv.OnConnection = func(code status.Code, client *tcp.TCP) {
//	    if code != status.OK {
//	        return
//	    }
//	    client.SetReadCallback(onData)
//	    client.ReadStart()
//	}
//	srv.Bind("127.0.0.1", 8080)
//	if code := srv.Listen(511); code != status.OK {
//	    log.Fatal(code)
//	}
//
// Outgoing connections use Connect or Connect6 with a ConnectRequest.
package tcp
