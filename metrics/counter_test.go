package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	c := NewCounter(7)
	require.Equal(t, int64(7), c.Value())
	require.Equal(t, int64(10), c.Incr(3))
	require.Equal(t, int64(8), c.Dec(2))
	require.Equal(t, int64(8), c.Reset(0))
	require.Equal(t, int64(0), c.Value())

	require.Equal(t, KindCounter, c.Kind())
	snap := c.Snapshot()
	require.Equal(t, CounterSnapshot{Count: 0}, snap)
}

func TestCounter_ConcurrentIncr(t *testing.T) {
	c := NewCounter(0)
	var wg sync.WaitGroup
	wg.Add(16)
	for i := 0; i < 16; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Incr(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(16000), c.Value())
}

func TestCounterSnapshot_Merge(t *testing.T) {
	a := CounterSnapshot{Count: 3}
	merged := a.Merge(CounterSnapshot{Count: 4})
	require.Equal(t, CounterSnapshot{Count: 7}, merged)
	// Foreign snapshot types leave the receiver unchanged.
	require.Equal(t, CounterSnapshot{Count: 3}, a.Merge(MeterSnapshot{Rate: 1}))
}

func TestGauge(t *testing.T) {
	sg := NewSettableGauge(1.5)
	require.InDelta(t, 1.5, sg.Value(), 0.0)
	sg.Set(-2.25)
	require.InDelta(t, -2.25, sg.Value(), 0.0)
	require.Equal(t, KindGauge, sg.Kind())

	n := 41.0
	fg := NewFunctionalGauge(func() float64 { n++; return n })
	require.InDelta(t, 42.0, fg.Value(), 0.0)
	require.InDelta(t, 43.0, fg.Snapshot().(GaugeSnapshot).Value, 0.0)

	require.InDelta(t, 0.0, NewFunctionalGauge(nil).Value(), 0.0)

	// Gauge aggregation over permutations is a mean.
	agg := GaugeSnapshot{Value: 1, weight: 1}.Merge(GaugeSnapshot{Value: 3, weight: 1})
	require.InDelta(t, 2.0, agg.(GaugeSnapshot).Value, 1e-9)
}
