package tcp

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	initialBackoff = 5 * time.Millisecond
	maxBackoff     = 1000 * time.Millisecond

	// maxBacklog keeps ceilPowOf2(backlog+1) from overflowing.
	maxBacklog = 1<<30 - 1
)

// acceptBackoff is the accept loop's retry delay: unset until the first
// failure, then 5ms doubling up to 1s. A successful accept resets it.
// The zero value is ready to use.
type acceptBackoff struct {
	exp   *backoff.ExponentialBackOff
	delay time.Duration
}

func (b *acceptBackoff) next() time.Duration {
	if b.exp == nil {
		b.exp = &backoff.ExponentialBackOff{
			InitialInterval:     initialBackoff,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         maxBackoff,
		}
		b.exp.Reset()
	}
	b.delay = b.exp.NextBackOff()
	return b.delay
}

func (b *acceptBackoff) reset() {
	if b.exp != nil {
		b.exp.Reset()
	}
	b.delay = 0
}

func (b *acceptBackoff) current() time.Duration {
	return b.delay
}

// ceilPowOf2 returns the smallest power of two not below n, and 1 for n <= 1.
func ceilPowOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
