package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benz9527/xmetrics/lib/hrtime"
)

func TestRegistry_GetOrRegister(t *testing.T) {
	reg := NewRegistry()

	c1, err := reg.Counter("requests.total")
	require.NoError(t, err)
	c2, err := reg.Counter("requests.total")
	require.NoError(t, err)
	require.Same(t, c1, c2)

	// A different tag permutation is a different instance.
	c3, err := reg.Counter("requests.total", NewTags("zone", "us-east"))
	require.NoError(t, err)
	require.NotSame(t, c1, c3)

	// An equal tag set built again resolves to the same instance.
	c4, err := reg.Counter("requests.total", NewTags("zone", "us-east"))
	require.NoError(t, err)
	require.Same(t, c3, c4)
}

func TestRegistry_InvalidPath(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Counter("")
	require.ErrorIs(t, err, ErrInvalidMetricPath)
	_, err = reg.EWMA("a..b", time.Minute, time.Second)
	require.ErrorIs(t, err, ErrInvalidMetricPath)
}

func TestRegistry_KindMismatch(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Counter("latency")
	require.NoError(t, err)

	_, err = reg.EWMA("latency", time.Minute, time.Second)
	require.ErrorIs(t, err, ErrMetricTypeMismatch)
	_, err = reg.Histogram("latency", time.Minute)
	require.ErrorIs(t, err, ErrMetricTypeMismatch)

	// Gauge variants share a kind but not a concrete type.
	_, err = reg.Gauge("pool.size", func() float64 { return 1 })
	require.NoError(t, err)
	_, err = reg.SettableGauge("pool.size")
	require.ErrorIs(t, err, ErrMetricTypeMismatch)
}

func TestRegistry_MergedVariadicTags(t *testing.T) {
	reg := NewRegistry()
	a, err := reg.Counter("hits", NewTags("app", "gw"), NewTags("zone", "eu"))
	require.NoError(t, err)
	b, err := reg.Counter("hits", NewTags("zone", "eu", "app", "gw"))
	require.NoError(t, err)
	require.Same(t, a, b)
}

func TestRegistry_VisitAndAggregate(t *testing.T) {
	clock := hrtime.NewManualClock(time.Time{})
	reg := NewRegistry(WithRegistryClock(clock))

	east, err := reg.Counter("requests.total", NewTags("zone", "us-east"))
	require.NoError(t, err)
	west, err := reg.Counter("requests.total", NewTags("zone", "us-west"))
	require.NoError(t, err)
	east.Incr(3)
	west.Incr(4)

	e, err := reg.EWMA("requests.rate", time.Minute, time.Second)
	require.NoError(t, err)
	e.Mark(12)
	clock.Advance(time.Second)

	seen := map[Path]Kind{}
	reg.Visit(func(path Path, rm *RegisteredMetric) bool {
		seen[path] = rm.Kind()
		return true
	})
	require.Equal(t, map[Path]Kind{
		"requests.total": KindCounter,
		"requests.rate":  KindEWMA,
	}, seen)

	reg.Visit(func(path Path, rm *RegisteredMetric) bool {
		switch path {
		case "requests.total":
			agg := rm.Aggregate()
			require.Equal(t, CounterSnapshot{Count: 7}, agg)

			byZone := map[string]int64{}
			rm.Each(func(tags Tags, snap Snapshot) bool {
				zone, _ := tags.Value("zone")
				byZone[zone] = snap.(CounterSnapshot).Count
				return true
			})
			require.Equal(t, map[string]int64{"us-east": 3, "us-west": 4}, byZone)
		case "requests.rate":
			require.InDelta(t, 12.0, rm.Aggregate().(MeterSnapshot).Rate, 1e-9)
		}
		return true
	})

	// Early stop.
	visits := 0
	reg.Visit(func(Path, *RegisteredMetric) bool {
		visits++
		return false
	})
	require.Equal(t, 1, visits)
}

func TestRegistry_AggregateEmptyRegistration(t *testing.T) {
	rm := newRegisteredMetric(KindCounter)
	require.Nil(t, rm.Aggregate())
}

func TestRegistry_ConcurrentGetOrRegister(t *testing.T) {
	reg := NewRegistry()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		counters = make(map[*Counter]struct{})
	)
	wg.Add(16)
	for i := 0; i < 16; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c, err := reg.Counter("storm.hits", NewTags("app", "gw"))
				if !assert.NoError(t, err) {
					return
				}
				c.Incr(1)
				mu.Lock()
				counters[c] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Exactly one instance ever existed, and it absorbed every hit.
	require.Len(t, counters, 1)
	c, err := reg.Counter("storm.hits", NewTags("app", "gw"))
	require.NoError(t, err)
	require.Equal(t, int64(1600), c.Value())
}
