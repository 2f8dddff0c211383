package list

import (
	"sync/atomic"
)

const (
	nodeDeleted = uint32(0x0001) // marked at every outgoing level, logically removed
)

// sklMarkedRef couples a forward pointer with the deletion mark of the
// outgoing link. The pair is replaced atomically as a unit, which is how
// this implementation realizes a "marked pointer" without tagging low
// bits of a raw pointer (a tagged pointer would be invisible to the GC's
// pointer scan).
//
// A nil succ is the end of the chain at that level.
type sklMarkedRef[T any] struct {
	succ   *xLockFreeSklNode[T]
	marked bool
}

// sklNext is one forward slot of a node. Reads are acquire, successful
// CAS writes are release (Go's atomic.Pointer is sequentially
// consistent, which subsumes both).
type sklNext[T any] struct {
	ref atomic.Pointer[sklMarkedRef[T]]
}

func (s *sklNext[T]) load() (succ *xLockFreeSklNode[T], marked bool) {
	cur := s.ref.Load()
	return cur.succ, cur.marked
}

func (s *sklNext[T]) loadRef() *sklMarkedRef[T] {
	return s.ref.Load()
}

func (s *sklNext[T]) store(succ *xLockFreeSklNode[T], marked bool) {
	s.ref.Store(&sklMarkedRef[T]{succ: succ, marked: marked})
}

// compareAndSet succeeds only if the slot currently holds exactly
// (expectedSucc, expectedMarked). The identity of the loaded record is
// what the underlying CAS runs against, so a concurrent writer that
// installs an equal-looking record still defeats this attempt and the
// caller re-reads.
func (s *sklNext[T]) compareAndSet(expectedSucc, newSucc *xLockFreeSklNode[T], expectedMarked, newMarked bool) bool {
	cur := s.ref.Load()
	if cur.succ != expectedSucc || cur.marked != expectedMarked {
		return false
	}
	if cur.succ == newSucc && cur.marked == newMarked {
		return true
	}
	return s.ref.CompareAndSwap(cur, &sklMarkedRef[T]{succ: newSucc, marked: newMarked})
}

// xLockFreeSklNode is one element of the skip list.
//
// value and level are frozen once the node is published at level 0;
// everything mutable afterwards goes through CAS on the next slots and
// the flag bits.
type xLockFreeSklNode[T any] struct {
	value T
	flags flagBits
	level int32 // count of forward slots in [1, maxLevel]
	next  []sklNext[T]
}

func newXLockFreeSklNode[T any](value T, level int32) *xLockFreeSklNode[T] {
	n := &xLockFreeSklNode[T]{
		value: value,
		level: level,
		next:  make([]sklNext[T], level),
	}
	for l := int32(0); l < level; l++ {
		n.next[l].store(nil, false)
	}
	return n
}

// newXLockFreeSklHead builds the left sentinel. Its value is never
// observed and it is never marked or erased.
func newXLockFreeSklHead[T any](maxLevel int32) *xLockFreeSklNode[T] {
	var zero T
	return newXLockFreeSklNode[T](zero, maxLevel)
}
