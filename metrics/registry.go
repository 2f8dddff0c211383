package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/benz9527/xmetrics/lib/hrtime"
	"github.com/benz9527/xmetrics/lib/infra"
	"github.com/benz9527/xmetrics/lib/kv"
)

var (
	ErrMetricTypeMismatch = errors.New("[xmetrics] registered metric kind mismatch")
	ErrInvalidMetricPath  = errors.New("[xmetrics] invalid metric path")
)

// RegisteredMetric is the root registration at one path: the metric
// kind plus the container of actual metrics by tag permutation.
// Publishers reach metrics through it, either per tag set or
// aggregated across all of them.
type RegisteredMetric struct {
	kind   Kind
	mu     sync.Mutex
	tagged map[string]Metric
	tags   map[string]Tags
}

func newRegisteredMetric(kind Kind) *RegisteredMetric {
	return &RegisteredMetric{
		kind:   kind,
		tagged: make(map[string]Metric, 4),
		tags:   make(map[string]Tags, 4),
	}
}

func (rm *RegisteredMetric) Kind() Kind { return rm.kind }

func (rm *RegisteredMetric) child(tags Tags, build func() (Metric, error)) (Metric, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	key := tags.Canonical()
	if m, exists := rm.tagged[key]; exists {
		return m, nil
	}
	m, err := build()
	if err != nil {
		return nil, err
	}
	rm.tagged[key] = m
	rm.tags[key] = tags
	return m, nil
}

// Each visits every tagged permutation with its snapshot. Snapshots
// are taken under the registration lock; fn runs outside it.
func (rm *RegisteredMetric) Each(fn func(tags Tags, snap Snapshot) bool) {
	type entry struct {
		tags Tags
		snap Snapshot
	}
	rm.mu.Lock()
	entries := make([]entry, 0, len(rm.tagged))
	for key, m := range rm.tagged {
		entries = append(entries, entry{tags: rm.tags[key], snap: m.Snapshot()})
	}
	rm.mu.Unlock()
	for _, e := range entries {
		if !fn(e.tags, e.snap) {
			return
		}
	}
}

// Aggregate merges all tagged permutations into a single snapshot,
// nil when nothing has been registered under the path yet.
func (rm *RegisteredMetric) Aggregate() Snapshot {
	var agg Snapshot
	rm.Each(func(_ Tags, snap Snapshot) bool {
		if agg == nil {
			agg = snap
		} else {
			agg = agg.Merge(snap)
		}
		return true
	})
	return agg
}

// Registry maps metric paths to registrations. The repository is a
// mutex-guarded map; all the concurrency heavy lifting lives below,
// in the metric primitives themselves.
type Registry struct {
	repo  kv.ThreadSafeStorer[Path, *RegisteredMetric]
	clock hrtime.Clock
}

type RegistryOption func(*Registry)

// WithRegistryClock injects the clock handed to time-based metrics.
func WithRegistryClock(clock hrtime.Clock) RegistryOption {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		repo:  kv.NewThreadSafeMap[Path, *RegisteredMetric](),
		clock: hrtime.SdkClock,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) root(path Path, kind Kind) (*RegisteredMetric, error) {
	if !path.Valid() {
		return nil, infra.WrapErrorStackWithMessage(ErrInvalidMetricPath, path.String())
	}
	rm, _ := r.repo.GetOrEmplace(path, func() *RegisteredMetric {
		return newRegisteredMetric(kind)
	})
	if rm.Kind() != kind {
		return nil, infra.WrapErrorStackWithMessage(ErrMetricTypeMismatch,
			"path "+path.String()+" holds "+string(rm.Kind())+", want "+string(kind))
	}
	return rm, nil
}

func registryChild[M Metric](rm *RegisteredMetric, path Path, tags Tags, build func() (Metric, error)) (M, error) {
	m, err := rm.child(tags, build)
	if err != nil {
		var zero M
		return zero, err
	}
	typed, ok := m.(M)
	if !ok {
		var zero M
		return zero, infra.WrapErrorStackWithMessage(ErrMetricTypeMismatch,
			"path "+path.String()+" tags {"+tags.Canonical()+"} holds another "+string(rm.Kind())+" variant")
	}
	return typed, nil
}

// mergeTags folds the optional variadic tag collections of the
// getters into one permutation.
func mergeTags(tags []Tags) Tags {
	switch len(tags) {
	case 0:
		return EmptyTags
	case 1:
		return tags[0]
	}
	m := make(map[string]string, 8)
	for _, t := range tags {
		t.Each(func(k, v string) bool {
			m[k] = v
			return true
		})
	}
	return TagsFromMap(m)
}

// Counter returns the counter registered at path with tags, creating
// it at initial zero on first sight.
func (r *Registry) Counter(path Path, tags ...Tags) (*Counter, error) {
	rm, err := r.root(path, KindCounter)
	if err != nil {
		return nil, err
	}
	return registryChild[*Counter](rm, path, mergeTags(tags), func() (Metric, error) {
		return NewCounter(0), nil
	})
}

// EWMA returns the moving average registered at path with tags.
// window and interval only apply on first registration.
func (r *Registry) EWMA(path Path, window, interval time.Duration, tags ...Tags) (*EWMA, error) {
	rm, err := r.root(path, KindEWMA)
	if err != nil {
		return nil, err
	}
	return registryChild[*EWMA](rm, path, mergeTags(tags), func() (Metric, error) {
		return NewEWMA(r.clock, window, interval), nil
	})
}

// Gauge returns the functional gauge registered at path with tags; fn
// only applies on first registration.
func (r *Registry) Gauge(path Path, fn func() float64, tags ...Tags) (*FunctionalGauge, error) {
	rm, err := r.root(path, KindGauge)
	if err != nil {
		return nil, err
	}
	return registryChild[*FunctionalGauge](rm, path, mergeTags(tags), func() (Metric, error) {
		return NewFunctionalGauge(fn), nil
	})
}

// SettableGauge returns the settable gauge registered at path with
// tags.
func (r *Registry) SettableGauge(path Path, tags ...Tags) (*SettableGauge, error) {
	rm, err := r.root(path, KindGauge)
	if err != nil {
		return nil, err
	}
	return registryChild[*SettableGauge](rm, path, mergeTags(tags), func() (Metric, error) {
		return NewSettableGauge(0), nil
	})
}

// Histogram returns the sliding-window histogram registered at path
// with tags; window only applies on first registration.
func (r *Registry) Histogram(path Path, window time.Duration, tags ...Tags) (*Histogram, error) {
	rm, err := r.root(path, KindHistogram)
	if err != nil {
		return nil, err
	}
	return registryChild[*Histogram](rm, path, mergeTags(tags), func() (Metric, error) {
		return NewHistogram(r.clock, window)
	})
}

// Visit runs fn on every registration until it returns false. The
// iteration order is unspecified. Useful for publishers: from the
// registration they can visit each tag permutation or aggregate them.
func (r *Registry) Visit(fn func(path Path, rm *RegisteredMetric) bool) {
	for _, path := range r.repo.ListKeys() {
		rm, exists := r.repo.Get(path)
		if !exists {
			continue
		}
		if !fn(path, rm) {
			return
		}
	}
}
