package platform

import (
	"sync/atomic"
	"time"
)

// Tick is the unit of the monotonic time source.
//
// Ticks are 64-bit and compared with plain unsigned comparison. Wraparound is
// not handled: at one tick per microsecond the counter lasts ~584k years.
type Tick = uint64

// Clock is a monotonic, non-decreasing tick source.
type Clock interface {
	Now() Tick
}

// SystemClock counts ticks of a fixed unit since it was created.
type SystemClock struct {
	start time.Time
	unit  time.Duration
}

// NewSystemClock returns a clock whose tick is unit long. A non-positive unit
// defaults to one millisecond (the millis() resolution of the boards).
func NewSystemClock(unit time.Duration) *SystemClock {
	if unit <= 0 {
		unit = time.Millisecond
	}
	return &SystemClock{start: time.Now(), unit: unit}
}

// Now relies on the monotonic reading carried by time.Time.
func (c *SystemClock) Now() Tick {
	return Tick(time.Since(c.start) / c.unit)
}

func (c *SystemClock) Unit() time.Duration { return c.unit }

// Ticks converts d into whole ticks, rounding up so a positive duration never
// becomes a zero delay.
func (c *SystemClock) Ticks(d time.Duration) Tick {
	return DurationToTicks(d, c.unit)
}

// Duration converts a tick count back to wall time.
func (c *SystemClock) Duration(t Tick) time.Duration {
	return time.Duration(t) * c.unit
}

// DurationToTicks converts d into ticks of the given unit, rounding up.
func DurationToTicks(d, unit time.Duration) Tick {
	if d <= 0 {
		return 0
	}
	if unit <= 0 {
		unit = time.Millisecond
	}
	return Tick((d + unit - 1) / unit)
}

// ManualClock is a clock driven by the caller. Safe for concurrent use.
type ManualClock struct {
	now atomic.Uint64
}

func NewManualClock(start Tick) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

func (c *ManualClock) Now() Tick { return c.now.Load() }

// Set moves the clock to t. Moving backwards is ignored to keep the clock
// non-decreasing.
func (c *ManualClock) Set(t Tick) {
	for {
		cur := c.now.Load()
		if t <= cur || c.now.CompareAndSwap(cur, t) {
			return
		}
	}
}

func (c *ManualClock) Advance(d Tick) Tick { return c.now.Add(d) }
