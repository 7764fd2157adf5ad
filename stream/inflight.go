package stream

// tracker is the set of native operations of one kind that have been issued
// and not yet settled. Only the loop goroutine touches it.
type tracker struct {
	live map[uint64][]func()
	seq  uint64
}

func (t *tracker) add() uint64 {
	if t.live == nil {
		t.live = make(map[uint64][]func())
	}
	t.seq++
	t.live[t.seq] = nil
	return t.seq
}

func (t *tracker) settle(id uint64) {
	waiters, ok := t.live[id]
	if !ok {
		return
	}
	delete(t.live, id)
	for _, fn := range waiters {
		fn()
	}
}

func (t *tracker) len() int {
	return len(t.live)
}

// waitAll calls done once every operation live in the given trackers at the
// time of the call has settled. Operations added later are not waited for.
func waitAll(done func(), trackers ...*tracker) {
	remaining := 0
	for _, t := range trackers {
		remaining += t.len()
	}
	if remaining == 0 {
		done()
		return
	}

	settled := func() {
		remaining--
		if remaining == 0 {
			done()
		}
	}
	for _, t := range trackers {
		for id := range t.live {
			t.live[id] = append(t.live[id], settled)
		}
	}
}
