package resource

import (
	"sort"
	"sync"
)

type entry struct {
	value    any
	provider Provider
}

// Table tracks live handles by async id and notifies observers when they come and go.
// Safe for concurrent use.
type Table struct {
	entries   map[ID]entry
	observers map[int]Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	obsSeq    int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries:   make(map[ID]entry),
		observers: make(map[int]Observer),
	}
}

// Insert allocates a fresh id for value and records it.
func (t *Table) Insert(provider Provider, value any) ID {
	id := NewID()
	t.Track(id, provider, value)
	return id
}

// Track records value under an id obtained from NewID.
func (t *Table) Track(id ID, provider Provider, value any) {
	if id == 0 {
		return
	}

	t.mu.Lock()
	t.entries[id] = entry{value: value, provider: provider}
	t.mu.Unlock()

	t.notify(Event{
		Type:     EventCreated,
		ID:       id,
		Provider: provider,
		Value:    value,
	})
}

// Get retrieves a value by id.
func (t *Table) Get(id ID) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Provider returns the provider tag recorded for id.
func (t *Table) Provider(id ID) (Provider, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	return e.provider, ok
}

// Remove forgets id and returns (value, true) if it was live.
func (t *Table) Remove(id ID) (any, bool) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		return nil, false
	}

	t.notify(Event{
		Type:     EventClosed,
		ID:       id,
		Provider: e.provider,
		Value:    e.value,
	})

	return e.value, true
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Each visits live entries in ascending id order until fn returns false.
// The table is not locked while fn runs, so fn may call Remove.
func (t *Table) Each(fn func(ID, Provider, any) bool) {
	t.mu.RLock()
	ids := make([]ID, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	snapshot := make(map[ID]entry, len(t.entries))
	for id, e := range t.entries {
		snapshot[id] = e
	}
	t.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		e := snapshot[id]
		if !fn(id, e.provider, e.value) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events and returns a function that removes it.
func (t *Table) Subscribe(o Observer) (unsubscribe func()) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.obsSeq++
	key := t.obsSeq
	t.observers[key] = o
	return func() {
		t.obsMu.Lock()
		delete(t.observers, key)
		t.obsMu.Unlock()
	}
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	keys := make([]int, 0, len(t.observers))
	for k := range t.observers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		t.observers[k].OnResourceEvent(e)
	}
}
