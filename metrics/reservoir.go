package metrics

import (
	"sort"
	"time"

	"github.com/benz9527/xmetrics/lib/hrtime"
	"github.com/benz9527/xmetrics/lib/id"
	"github.com/benz9527/xmetrics/lib/infra"
	"github.com/benz9527/xmetrics/lib/list"
)

// Sample is one observation held by a reservoir: the monotonic offset
// it was taken at, a tie-breaking sequence number, and the value.
type Sample struct {
	When  time.Duration
	Seq   uint64
	Value float64
}

// compareSamples orders samples by observation time. The sequence
// number breaks ties, so two observations in the same clock tick stay
// distinct elements of the de-duplicating skip list underneath.
func compareSamples(a, b Sample) int {
	if r := infra.CompareAsc(int64(a.When), int64(b.When)); r != 0 {
		return int(r)
	}
	return int(infra.CompareAsc(a.Seq, b.Seq))
}

// SlidingWindowReservoir keeps the samples observed during the last
// window, ordered oldest first on a lock-free skip list. Update and
// Values may race freely; trimming erases expired samples through
// cursors, concurrent trimmers simply lose the erase and move on.
type SlidingWindowReservoir struct {
	samples list.LockFreeSkipList[Sample]
	seq     id.Sequence
	clock   hrtime.Clock
	window  time.Duration
}

// NewSlidingWindowReservoir builds a reservoir spanning window.
// A non-positive window falls back to a minute.
func NewSlidingWindowReservoir(clock hrtime.Clock, window time.Duration) (*SlidingWindowReservoir, error) {
	if clock == nil {
		clock = hrtime.SdkClock
	}
	if window <= 0 {
		window = time.Minute
	}
	seq, err := id.MonotonicNonZeroID()
	if err != nil {
		return nil, infra.WrapErrorStack(err)
	}
	samples, err := list.NewXLockFreeSkl[Sample](compareSamples)
	if err != nil {
		return nil, infra.WrapErrorStack(err)
	}
	return &SlidingWindowReservoir{
		samples: samples,
		seq:     seq,
		clock:   clock,
		window:  window,
	}, nil
}

// Update records one observation and opportunistically trims expired
// ones.
func (r *SlidingWindowReservoir) Update(v float64) {
	now := r.clock.MonotonicElapsed()
	r.trim(now)
	// Distinct Seq per call: the insert can only report duplicate if
	// the sequence wrapped inside one window, which a uint64 does not.
	r.samples.Insert(Sample{When: now, Seq: r.seq.Next(), Value: v})
}

// trim erases every sample that fell out of the window. The head of
// the time-ordered list is always the oldest live sample; losing an
// erase race to a concurrent trimmer just means the work is done.
func (r *SlidingWindowReservoir) trim(now time.Duration) {
	deadline := now - r.window
	for {
		head := r.samples.Begin()
		if head.Equal(r.samples.End()) || head.Value().When > deadline {
			return
		}
		r.samples.Erase(head)
	}
}

// Size counts the live samples inside the window.
func (r *SlidingWindowReservoir) Size() int {
	r.trim(r.clock.MonotonicElapsed())
	n := 0
	r.samples.Foreach(func(int64, Sample) bool {
		n++
		return true
	})
	return n
}

// Values returns the windowed sample values ascending by value.
func (r *SlidingWindowReservoir) Values() []float64 {
	r.trim(r.clock.MonotonicElapsed())
	values := make([]float64, 0, 64)
	r.samples.Foreach(func(_ int64, s Sample) bool {
		values = append(values, s.Value)
		return true
	})
	sort.Float64s(values)
	return values
}
