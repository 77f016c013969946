package platform

import (
	"sync"
	"testing"
	"time"
)

func TestDurationToTicksRoundsUp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		d    time.Duration
		unit time.Duration
		want Tick
	}{
		{d: 0, unit: time.Millisecond, want: 0},
		{d: -time.Second, unit: time.Millisecond, want: 0},
		{d: time.Millisecond, unit: time.Millisecond, want: 1},
		{d: 1500 * time.Microsecond, unit: time.Millisecond, want: 2},
		{d: time.Second, unit: 0, want: 1000},
		{d: 10 * time.Second, unit: time.Second, want: 10},
	}
	for _, tt := range tests {
		if got := DurationToTicks(tt.d, tt.unit); got != tt.want {
			t.Fatalf("DurationToTicks(%v, %v) = %d, want %d", tt.d, tt.unit, got, tt.want)
		}
	}
}

func TestSystemClockIsNonDecreasing(t *testing.T) {
	c := NewSystemClock(time.Microsecond)
	prev := c.Now()
	for i := 0; i < 1000; i++ {
		now := c.Now()
		if now < prev {
			t.Fatalf("clock went backwards: %d < %d", now, prev)
		}
		prev = now
	}
	if c.Duration(3) != 3*time.Microsecond {
		t.Fatalf("Duration(3) = %v", c.Duration(3))
	}
}

func TestManualClockIgnoresBackwardSet(t *testing.T) {
	t.Parallel()
	c := NewManualClock(10)
	c.Set(5)
	if c.Now() != 10 {
		t.Fatalf("Now = %d, want 10", c.Now())
	}
	c.Set(20)
	if got := c.Advance(5); got != 25 {
		t.Fatalf("Advance = %d, want 25", got)
	}
}

func TestMaskSerializesSections(t *testing.T) {
	m := NewMask()
	n := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				Guard(m, func() { n++ })
			}
		}()
	}
	wg.Wait()
	if n != 8000 {
		t.Fatalf("n = %d, want 8000", n)
	}
}
