// Package uvcompat runs callback-style stream handles on Go's blocking
// network primitives.
//
// Code written against a completion API (bind, listen, accept, read, write,
// shutdown, close, each returning a numeric status and completing later
// through a callback) is driven by a single loop goroutine. Native I/O runs
// in helper goroutines and settles back on the loop, so handle state is never
// shared between goroutines.
//
// # Packages
//
//	uvcompat/       Runtime: loop, handle table, logger and metrics wired together
//	├── loop/       tick queue, microtasks, timers and liveness
//	├── handle/     OPEN → CLOSING → CLOSED lifecycle with ref/unref
//	├── stream/     read engine, serialized writes, shutdown, string writes
//	├── tcp/        TCP sockets and servers, accept loop with backoff
//	├── native/     host transport interfaces over net, nativetest fakes
//	├── resource/   async ids, provider tags and the live handle table
//	├── status/     negative status codes and mapping from Go errors
//	├── errors/     structured programmer and internal errors
//	├── metrics/    prometheus collector
//	└── cmd/uvecho/ echo server CLI
//
// # Quick Start
//
//	rt, err := uvcompat.New(uvcompat.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := rt.NewTCP(tcp.Server)
//	srv.OnConnection = func(code status.Code, conn *tcp.TCP) {
//	    conn.SetReadCallback(func(buf []byte, nread int) bool {
//	        if nread < 0 {
//	            conn.Close(nil)
//	            return false
//	        }
//	        conn.WriteBuffer(stream.NewWriteRequest(func(status.Code) {}), buf)
//	        return true
//	    })
//	    conn.ReadStart()
//	}
//	srv.Bind("127.0.0.1", 7000)
//	srv.Listen(511)
//	log.Fatal(rt.Run(ctx))
//
// Read buffers are reused only when the callback returns; the echo above
// must copy buf if the write can outlive the callback.
package uvcompat
