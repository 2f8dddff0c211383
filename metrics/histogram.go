package metrics

import (
	"time"

	"github.com/benz9527/xmetrics/lib/hrtime"
)

// Histogram tracks the distribution of observed values over a sliding
// time window, plus a lifetime observation count. The distribution
// lives in a skip-list reservoir, so concurrent observers never take a
// common lock.
type Histogram struct {
	count     Counter
	reservoir *SlidingWindowReservoir
}

func NewHistogram(clock hrtime.Clock, window time.Duration) (*Histogram, error) {
	reservoir, err := NewSlidingWindowReservoir(clock, window)
	if err != nil {
		return nil, err
	}
	return &Histogram{reservoir: reservoir}, nil
}

// Update records one observation.
func (h *Histogram) Update(v float64) {
	h.count.Incr(1)
	h.reservoir.Update(v)
}

// Count reports lifetime observations, including expired ones.
func (h *Histogram) Count() int64 {
	return h.count.Value()
}

func (h *Histogram) Kind() Kind { return KindHistogram }

func (h *Histogram) Snapshot() Snapshot {
	return newHistogramSnapshot(h.count.Value(), h.reservoir.Values())
}
