package resource

import (
	"strconv"
	"sync/atomic"
)

// ID is an async id. Ids are process-wide, strictly increasing and never reused.
// ID 0 is reserved and always invalid.
type ID uint64

var lastID atomic.Uint64

// NewID returns a fresh async id.
func NewID() ID {
	return ID(lastID.Add(1))
}

// Provider tags what kind of resource a handle or request wraps.
type Provider uint8

const (
	ProviderNone Provider = iota
	ProviderTCPWrap
	ProviderTCPServerWrap
	ProviderTCPConnectWrap
	ProviderWriteWrap
	ProviderShutdownWrap
	ProviderPipeWrap
)

var providerNames = [...]string{
	ProviderNone:           "NONE",
	ProviderTCPWrap:        "TCPWRAP",
	ProviderTCPServerWrap:  "TCPSERVERWRAP",
	ProviderTCPConnectWrap: "TCPCONNECTWRAP",
	ProviderWriteWrap:      "WRITEWRAP",
	ProviderShutdownWrap:   "SHUTDOWNWRAP",
	ProviderPipeWrap:       "PIPEWRAP",
}

func (p Provider) String() string {
	if int(p) < len(providerNames) {
		return providerNames[p]
	}
	return "PROVIDER(" + strconv.Itoa(int(p)) + ")"
}

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventClosed
)

// Event represents a resource lifecycle event.
type Event struct {
	Value    any
	ID       ID
	Provider Provider
	Type     EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }
