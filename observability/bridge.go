package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/benz9527/xmetrics/metrics"
	"github.com/benz9527/xmetrics/xlog"
)

const defaultBridgeScanInterval = 10 * time.Second

// RegistryBridge republishes every metric registered in a
// metrics.Registry through the global OTel meter, aggregated across
// tag permutations. New registrations are picked up by a periodic
// scan; readings themselves are pulled lazily by the meter provider's
// collection callbacks, so an idle provider costs nothing.
type RegistryBridge struct {
	ctx      context.Context
	registry *metrics.Registry
	meter    otelmetric.Meter
	logger   xlog.XLogger
	interval time.Duration
	bound    map[metrics.Path]struct{}
}

type RegistryBridgeOption func(*RegistryBridge)

// WithBridgeScanInterval tunes how often the bridge looks for freshly
// registered paths.
func WithBridgeScanInterval(interval time.Duration) RegistryBridgeOption {
	return func(b *RegistryBridge) {
		if interval > 0 {
			b.interval = interval
		}
	}
}

// WithBridgeLogger routes instrument registration failures somewhere
// visible.
func WithBridgeLogger(logger xlog.XLogger) RegistryBridgeOption {
	return func(b *RegistryBridge) {
		b.logger = logger
	}
}

// WatchRegistry starts bridging reg into the global OTel meter under
// the given scope name. It returns once the first scan completed;
// later registrations are bound by the background scan until ctx is
// done.
func WatchRegistry(ctx context.Context, reg *metrics.Registry, name string, opts ...RegistryBridgeOption) *RegistryBridge {
	b := &RegistryBridge{
		ctx:      ctx,
		registry: reg,
		meter:    otel.Meter("xmetrics/registry/" + name),
		interval: defaultBridgeScanInterval,
		bound:    make(map[metrics.Path]struct{}, 16),
	}
	for _, o := range opts {
		o(b)
	}
	b.scan()
	go b.loop()
	return b
}

func (b *RegistryBridge) loop() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.scan()
		}
	}
}

// scan binds an OTel instrument for every path not seen before. Only
// the scan goroutine mutates bound.
func (b *RegistryBridge) scan() {
	b.registry.Visit(func(path metrics.Path, rm *metrics.RegisteredMetric) bool {
		if _, exists := b.bound[path]; exists {
			return true
		}
		if err := b.bind(path, rm); err != nil {
			if b.logger != nil {
				b.logger.ErrorStack(err, "bind metric to otel meter failed")
			}
			return true
		}
		b.bound[path] = struct{}{}
		return true
	})
}

func (b *RegistryBridge) bind(path metrics.Path, rm *metrics.RegisteredMetric) error {
	switch rm.Kind() {
	case metrics.KindCounter:
		_, err := b.meter.Int64ObservableCounter(
			path.String(),
			otelmetric.WithInt64Callback(func(_ context.Context, ob otelmetric.Int64Observer) error {
				if snap, ok := rm.Aggregate().(metrics.CounterSnapshot); ok {
					ob.Observe(snap.Count)
				}
				return nil
			}),
		)
		return err
	case metrics.KindGauge:
		_, err := b.meter.Float64ObservableGauge(
			path.String(),
			otelmetric.WithFloat64Callback(func(_ context.Context, ob otelmetric.Float64Observer) error {
				if snap, ok := rm.Aggregate().(metrics.GaugeSnapshot); ok {
					ob.Observe(snap.Value)
				}
				return nil
			}),
		)
		return err
	case metrics.KindEWMA:
		_, err := b.meter.Float64ObservableGauge(
			path.String(),
			otelmetric.WithFloat64Callback(func(_ context.Context, ob otelmetric.Float64Observer) error {
				if snap, ok := rm.Aggregate().(metrics.MeterSnapshot); ok {
					ob.Observe(snap.Rate)
				}
				return nil
			}),
		)
		return err
	case metrics.KindHistogram:
		for _, inst := range []struct {
			suffix string
			read   func(metrics.HistogramSnapshot) float64
		}{
			{suffix: ".mean", read: metrics.HistogramSnapshot.Mean},
			{suffix: ".p50", read: func(s metrics.HistogramSnapshot) float64 { return s.Quantile(0.5) }},
			{suffix: ".p99", read: func(s metrics.HistogramSnapshot) float64 { return s.Quantile(0.99) }},
		} {
			read := inst.read
			if _, err := b.meter.Float64ObservableGauge(
				path.String()+inst.suffix,
				otelmetric.WithFloat64Callback(func(_ context.Context, ob otelmetric.Float64Observer) error {
					if snap, ok := rm.Aggregate().(metrics.HistogramSnapshot); ok {
						ob.Observe(read(snap))
					}
					return nil
				}),
			); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}
