package tcp

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestBackoff_Sequence(t *testing.T) {
	var b acceptBackoff
	if b.current() != 0 {
		t.Fatalf("initial delay = %v, want unset", b.current())
	}

	var got []time.Duration
	for i := 0; i < 10; i++ {
		got = append(got, b.next())
	}
	ms := time.Millisecond
	want := []time.Duration{5 * ms, 10 * ms, 20 * ms, 40 * ms, 80 * ms, 160 * ms, 320 * ms, 640 * ms, 1000 * ms, 1000 * ms}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("delays (-want +got):\n%s", diff)
	}

	b.reset()
	if b.current() != 0 {
		t.Fatalf("delay after reset = %v", b.current())
	}
	if d := b.next(); d != 5*ms {
		t.Fatalf("first delay after reset = %v, want 5ms", d)
	}
}

func TestCeilPowOf2(t *testing.T) {
	tests := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {2, 2}, {3, 4}, {6, 8}, {8, 8}, {9, 16}, {512, 512}, {513, 1024},
	}
	for _, tt := range tests {
		if got := ceilPowOf2(tt.in); got != tt.want {
			t.Errorf("ceilPowOf2(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
