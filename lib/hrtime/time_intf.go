package hrtime

import "time"

// Clock abstracts the time source of the decaying metrics (EWMA,
// sliding-window reservoirs). Production code runs on SdkClock or one
// of the monotonic clocks; tests inject a ManualClock and advance it
// by hand instead of sleeping out intervals.
type Clock interface {
	NowIn(offset TimeZoneOffset) time.Time
	NowInDefaultTZ() time.Time
	NowInUTC() time.Time
	// MonotonicElapsed is the reading the decay math keys on: a
	// duration since an arbitrary fixed origin, immune to wall-clock
	// jumps.
	MonotonicElapsed() time.Duration
	Since(time.Time) time.Duration
}
