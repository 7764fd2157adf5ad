// Package metrics exports runtime activity as prometheus metrics.
//
// A single Collector serves as the resource.Observer of a handle table, the
// stream.Observer of every stream and the tcp.Observer of every server:
//
//	c := metrics.New()
//	prometheus.MustRegister(c)
//	unsubscribe := table.Subscribe(c)
//	srv := tcp.New(l, table, tcp.Server, tcp.Options{
//	    Stream:   stream.Options{Observer: c},
//	    Observer: c,
//	})
package metrics
