package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/benz9527/xmetrics/lib/hrtime"
)

func TestSlidingWindowReservoir_Window(t *testing.T) {
	clock := hrtime.NewManualClock(time.Time{})
	r, err := NewSlidingWindowReservoir(clock, time.Minute)
	require.NoError(t, err)

	r.Update(3)
	r.Update(1)
	clock.Advance(30 * time.Second)
	r.Update(2)
	require.Equal(t, 3, r.Size())
	require.Equal(t, []float64{1, 2, 3}, r.Values())

	// The first two samples fall out of the window.
	clock.Advance(45 * time.Second)
	require.Equal(t, []float64{2}, r.Values())
	require.Equal(t, 1, r.Size())

	clock.Advance(time.Hour)
	require.Empty(t, r.Values())
}

func TestSlidingWindowReservoir_DuplicateValues(t *testing.T) {
	clock := hrtime.NewManualClock(time.Time{})
	r, err := NewSlidingWindowReservoir(clock, time.Minute)
	require.NoError(t, err)

	// Equal values in the same tick stay distinct samples: the
	// sequence number keeps the ordered set from merging them.
	for i := 0; i < 5; i++ {
		r.Update(7.5)
	}
	require.Equal(t, []float64{7.5, 7.5, 7.5, 7.5, 7.5}, r.Values())
}

func TestSlidingWindowReservoir_ConcurrentUpdates(t *testing.T) {
	clock := hrtime.NewManualClock(time.Time{})
	r, err := NewSlidingWindowReservoir(clock, time.Hour)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(16)
	for i := 0; i < 16; i++ {
		i := i
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				r.Update(float64(i*500 + j))
			}
		}()
	}
	wg.Wait()

	values := r.Values()
	require.Len(t, values, 16*500)
	for i, v := range values {
		require.InDelta(t, float64(i), v, 0.0)
	}
}

func TestSlidingWindowReservoir_ConcurrentTrim(t *testing.T) {
	clock := hrtime.NewManualClock(time.Time{})
	r, err := NewSlidingWindowReservoir(clock, time.Second)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(8)
	for i := 0; i < 8; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				r.Update(float64(j))
				if j%50 == 49 {
					clock.Advance(100 * time.Millisecond)
				}
			}
		}()
	}
	wg.Wait()

	// Everything older than a second is gone, whatever the interleave.
	clock.Advance(2 * time.Second)
	require.Empty(t, r.Values())
}
