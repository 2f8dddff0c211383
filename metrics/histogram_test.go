package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/benz9527/xmetrics/lib/hrtime"
)

func TestHistogram(t *testing.T) {
	clock := hrtime.NewManualClock(time.Time{})
	h, err := NewHistogram(clock, time.Minute)
	require.NoError(t, err)
	require.Equal(t, KindHistogram, h.Kind())

	for i := 1; i <= 100; i++ {
		h.Update(float64(i))
	}
	require.Equal(t, int64(100), h.Count())

	snap := h.Snapshot().(HistogramSnapshot)
	require.Equal(t, int64(100), snap.Count)
	require.InDelta(t, 1.0, snap.Min(), 0.0)
	require.InDelta(t, 100.0, snap.Max(), 0.0)
	require.InDelta(t, 50.5, snap.Mean(), 1e-9)
	require.InDelta(t, 50.5, snap.Quantile(0.5), 1e-9)
	require.InDelta(t, 90.1, snap.Quantile(0.9), 1e-9)
	require.InDelta(t, 1.0, snap.Quantile(0), 0.0)
	require.InDelta(t, 100.0, snap.Quantile(1), 0.0)
}

func TestHistogram_WindowExpiry(t *testing.T) {
	clock := hrtime.NewManualClock(time.Time{})
	h, err := NewHistogram(clock, time.Minute)
	require.NoError(t, err)

	h.Update(10)
	clock.Advance(2 * time.Minute)
	h.Update(20)

	// Lifetime count survives the window; the distribution does not.
	require.Equal(t, int64(2), h.Count())
	snap := h.Snapshot().(HistogramSnapshot)
	require.Equal(t, []float64{20}, snap.Values)
}

func TestHistogramSnapshot_Empty(t *testing.T) {
	snap := newHistogramSnapshot(0, nil)
	require.InDelta(t, 0.0, snap.Min(), 0.0)
	require.InDelta(t, 0.0, snap.Max(), 0.0)
	require.InDelta(t, 0.0, snap.Mean(), 0.0)
	require.InDelta(t, 0.0, snap.Quantile(0.99), 0.0)
}

func TestHistogramSnapshot_Merge(t *testing.T) {
	a := newHistogramSnapshot(2, []float64{1, 3})
	b := newHistogramSnapshot(3, []float64{2, 4, 6})
	merged := a.Merge(b).(HistogramSnapshot)
	require.Equal(t, int64(5), merged.Count)
	require.Equal(t, []float64{1, 2, 3, 4, 6}, merged.Values)

	// Foreign snapshot types leave the receiver unchanged.
	same := a.Merge(CounterSnapshot{Count: 9}).(HistogramSnapshot)
	require.Equal(t, int64(2), same.Count)
}
