package hrtime

import (
	"sync/atomic"
	"time"
)

// ManualClock is a Clock whose monotonic reading only moves when the
// caller advances it. Metric decay math is driven through the Clock
// interface precisely so tests can run on this instead of waiting out
// real intervals.
type ManualClock struct {
	base    time.Time
	elapsed int64 // nanoseconds, atomic
}

var _ Clock = (*ManualClock)(nil)

func NewManualClock(base time.Time) *ManualClock {
	if base.IsZero() {
		base = appStartTime
	}
	return &ManualClock{base: base}
}

// Advance moves the clock forward by d (backwards moves are ignored).
func (c *ManualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	atomic.AddInt64(&c.elapsed, int64(d))
}

func (c *ManualClock) MonotonicElapsed() time.Duration {
	return time.Duration(atomic.LoadInt64(&c.elapsed))
}

func (c *ManualClock) now() time.Time {
	return c.base.Add(c.MonotonicElapsed())
}

func (c *ManualClock) NowIn(offset TimeZoneOffset) time.Time {
	return c.now().In(loadTZLocation(offset))
}

func (c *ManualClock) NowInDefaultTZ() time.Time {
	return c.NowIn(TimeZoneOffset(DefaultTimezoneOffset()))
}

func (c *ManualClock) NowInUTC() time.Time {
	return c.NowIn(TzUtc0Offset)
}

func (c *ManualClock) Since(beginTime time.Time) time.Duration {
	return c.now().Sub(beginTime)
}
