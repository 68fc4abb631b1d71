package guid

import (
	"fmt"
	"sync/atomic"
)

// Counter is a bounded collision counter that wraps around.
//
// Each call to Next returns the current value and advances it. When the
// current value is Max, Next hands out Max once and restarts at Min, so every
// value of [Min, Max] is emitted exactly once per cycle.
//
// # Thread Safety
//
// Next is a compare-and-swap loop, so the wrap transition is linearizable:
// two goroutines never receive the same value from one cycle.
//
// # Performance
//
// One atomic load and one CAS per call in the uncontended case; no locks,
// no allocations.
type Counter struct {
	value atomic.Int64
	min   int64
	max   int64
}

// NewCounter returns a counter over [0, 2^(8*bytes)-1] starting at 0.
//
// bytes must be between 1 and 7; it panics otherwise since counter widths are
// fixed by the shape or validated by the Layout before this is called.
func NewCounter(bytes int) *Counter {
	if bytes < 1 || bytes > 7 {
		panic(fmt.Sprintf("guid: counter width %d bytes out of range [1,7]", bytes))
	}
	return NewCounterRange(0, int64(1)<<(8*bytes)-1, 0)
}

// NewCounterRange returns a counter over [min, max] whose first value is start.
// start is clamped into the range.
func NewCounterRange(min, max, start int64) *Counter {
	if max < min {
		min, max = max, min
	}
	if start < min || start > max {
		start = min
	}
	c := &Counter{min: min, max: max}
	c.value.Store(start)
	return c
}

// Next returns a fresh counter value.
func (c *Counter) Next() int64 {
	for {
		cur := c.value.Load()
		next := cur + 1
		if cur >= c.max {
			next = c.min
		}
		if c.value.CompareAndSwap(cur, next) {
			return cur
		}
	}
}

// Min returns the lowest value the counter emits.
func (c *Counter) Min() int64 { return c.min }

// Max returns the highest value the counter emits.
func (c *Counter) Max() int64 { return c.max }
