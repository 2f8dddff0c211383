package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/benz9527/xmetrics/lib/hrtime"
)

// EWMA is an exponentially weighted moving average of marked values.
// Values are summed inside the current interval; each interval
// rollover folds the pending sum into the decayed rate with
// alpha = 1 - exp(-interval/window), so a value's contribution shrinks
// by a factor of e for every window of age. The currently accumulating
// interval is not part of the rate, which keeps a burst from spiking
// the reading before its interval closes.
type EWMA struct {
	mu       sync.Mutex
	clock    hrtime.Clock
	window   time.Duration
	interval time.Duration
	alpha    float64
	rate     float64
	pending  float64
	lastTick time.Duration
	primed   bool
}

// NewEWMA builds an average whose values fully decay over window,
// summed per interval. Non-positive durations fall back to a minute
// window over five-second intervals; an interval longer than the
// window is clamped to it.
func NewEWMA(clock hrtime.Clock, window, interval time.Duration) *EWMA {
	if clock == nil {
		clock = hrtime.SdkClock
	}
	if window <= 0 {
		window = time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if interval > window {
		interval = window
	}
	return &EWMA{
		clock:    clock,
		window:   window,
		interval: interval,
		alpha:    1 - math.Exp(-float64(interval)/float64(window)),
		lastTick: clock.MonotonicElapsed(),
	}
}

// Mark accumulates v into the current interval.
func (e *EWMA) Mark(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tick(e.clock.MonotonicElapsed())
	e.pending += v
}

// Rate returns the decayed per-interval rate.
func (e *EWMA) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tick(e.clock.MonotonicElapsed())
	return e.rate
}

// Window reports the full decay span.
func (e *EWMA) Window() time.Duration { return e.window }

// Interval reports the summing span.
func (e *EWMA) Interval() time.Duration { return e.interval }

// tick folds every interval that closed since the last fold. The
// first closed interval primes the rate with its plain sum; idle
// intervals decay the rate towards zero.
func (e *EWMA) tick(now time.Duration) {
	elapsed := now - e.lastTick
	if elapsed < e.interval {
		return
	}
	n := int64(elapsed / e.interval)
	if !e.primed {
		e.rate = e.pending
		e.primed = true
	} else {
		e.rate += e.alpha * (e.pending - e.rate)
	}
	if n > 1 {
		e.rate *= math.Pow(1-e.alpha, float64(n-1))
	}
	e.pending = 0
	e.lastTick += time.Duration(n) * e.interval
}

func (e *EWMA) Kind() Kind { return KindEWMA }

func (e *EWMA) Snapshot() Snapshot {
	return MeterSnapshot{Rate: e.Rate()}
}
