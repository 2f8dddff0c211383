package metrics

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Counter is a monotonically adjustable integral metric on a single
// atomic word. The word sits alone on its cache line so hot counters
// incremented from many goroutines do not false-share with neighbors.
type Counter struct {
	_ cpu.CacheLinePad
	v int64
	_ cpu.CacheLinePad
}

func NewCounter(initial int64) *Counter {
	c := &Counter{}
	atomic.StoreInt64(&c.v, initial)
	return c
}

// Incr adds delta (which may be negative).
func (c *Counter) Incr(delta int64) int64 {
	return atomic.AddInt64(&c.v, delta)
}

// Dec subtracts delta.
func (c *Counter) Dec(delta int64) int64 {
	return atomic.AddInt64(&c.v, -delta)
}

func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.v)
}

// Reset sets the counter back to v and returns the previous value.
func (c *Counter) Reset(v int64) int64 {
	return atomic.SwapInt64(&c.v, v)
}

func (c *Counter) Kind() Kind { return KindCounter }

func (c *Counter) Snapshot() Snapshot {
	return CounterSnapshot{Count: c.Value()}
}
