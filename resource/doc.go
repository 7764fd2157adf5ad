// Package resource provides async ids and the live-handle table.
//
// Every handle and request gets an ID from NewID. Ids are allocated from a single
// process-wide counter, so they strictly increase and are never reused, even after the
// handle they named has been closed.
//
// # Providers
//
// A Provider tags what kind of resource an id belongs to:
//
//	ProviderTCPWrap        - connected or unconnected TCP socket
//	ProviderTCPServerWrap  - listening TCP socket
//	ProviderTCPConnectWrap - outstanding connect request
//	ProviderWriteWrap      - outstanding write request
//	ProviderShutdownWrap   - outstanding shutdown request
//	ProviderPipeWrap       - reserved, pipes are not supported
//
// # Handle Table
//
// The Table maps ids of live handles to their values:
//
//	table := resource.NewTable()
//
//	id := table.Insert(resource.ProviderTCPWrap, sock)
//	value, ok := table.Get(id)
//	value, ok = table.Remove(id)
//
// Handles that allocate their id up front register with Track instead of Insert.
//
// # Observers
//
// Register observers to track resource lifecycle events:
//
//	stop := table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    switch e.Type {
//	    case resource.EventCreated:
//	        log.Printf("%s %d created", e.Provider, e.ID)
//	    case resource.EventClosed:
//	        log.Printf("%s %d closed", e.Provider, e.ID)
//	    }
//	}))
//	defer stop()
package resource
