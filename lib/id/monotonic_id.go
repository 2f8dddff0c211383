package id

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

const cacheLinePadSize = unsafe.Sizeof(cpu.CacheLinePad{})

// monotonicNonZeroID is an ID generator.
// Only increases; if it overflows it skips zero and keeps going.
// Occupies a whole cache line to avoid false sharing with neighboring
// fields under concurrent increment from many goroutines.
// MESI (Modified-Exclusive-Shared-Invalid)
// RAM data -> L3 cache -> L2 cache -> L1 cache -> CPU register.
type monotonicNonZeroID struct {
	_   [cacheLinePadSize - unsafe.Sizeof(*new(uint64))]byte // padding, avoid false sharing
	val uint64                                               // space traded for isolation
	_   [cacheLinePadSize - unsafe.Sizeof(*new(uint64))]byte
}

func (id *monotonicNonZeroID) next() uint64 {
	// Golang atomic add is a LOCK-prefixed instruction: it establishes a
	// happens-before edge between successive callers. https://go.dev/ref/mem
	v := atomic.AddUint64(&id.val, 1)
	if v == 0 {
		v = atomic.AddUint64(&id.val, 1)
	}
	return v
}

// MonotonicNonZeroID returns a Sequence backed by a padded atomic counter.
// Used by the metrics reservoir to break ties between samples that compare
// equal under the caller's ordering, so distinct samples are never silently
// merged by the skip list's duplicate-suppression rule.
func MonotonicNonZeroID() (Sequence, error) {
	src := &monotonicNonZeroID{val: 0}
	return &delegatingSequence{next: src.next}, nil
}
