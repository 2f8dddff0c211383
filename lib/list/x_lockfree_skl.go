package list

// References:
// https://people.csail.mit.edu/shanir/publications/LazySkipList.pdf
// The Art of Multiprocessor Programming, chapter 14 (lock-free skip list).
// github:
// https://github.com/zhangyunhao116/skipmap
//
// Each node owns one forward slot per level; the slot couples the
// successor pointer with the mark that logically deletes the outgoing
// link. Marking the level-0 slot is the erase's linearization point,
// publishing at level 0 by CAS is the insert's. Traversals splice out
// marked nodes as they pass (helping), which is what keeps every
// operation lock-free without a dedicated reclaimer.
//
//      +------+       +------+      +------+
// ...  | pred |------>| node |----->| succ | ...
//      +------+       +------+      +------+
//
// Physical unlink is the CAS of pred's slot from node to succ once
// node's slot carries the mark.

import (
	"sync/atomic"
)

type xLockFreeSkl[T any] struct {
	head     *xLockFreeSklNode[T]
	pool     *sklAuxPool[T]
	cmp      Comparator[T]
	maxLevel int32
	levels   int32 // highest level in use, atomic; raised, never lowered
}

type XLockFreeSklOption[T any] func(*xLockFreeSkl[T]) error

// WithXSklMaxLevel bounds node height. Levels above it are never
// allocated; the geometric generator truncates to it.
func WithXSklMaxLevel[T any](maxLevel int32) XLockFreeSklOption[T] {
	return func(skl *xLockFreeSkl[T]) error {
		if maxLevel < 1 || maxLevel > sklMaxSupportedLevel {
			return ErrXSklInvalidMaxLevel
		}
		skl.maxLevel = maxLevel
		return nil
	}
}

func NewXLockFreeSkl[T any](cmp Comparator[T], opts ...XLockFreeSklOption[T]) (LockFreeSkipList[T], error) {
	if cmp == nil {
		return nil, ErrXSklNilComparator
	}
	skl := &xLockFreeSkl[T]{
		cmp:      cmp,
		maxLevel: SklDefaultMaxLevel,
		levels:   1,
	}
	for _, o := range opts {
		if err := o(skl); err != nil {
			return nil, err
		}
	}
	skl.head = newXLockFreeSklHead[T](skl.maxLevel)
	skl.pool = newSklAuxPool[T](skl.maxLevel)
	return skl, nil
}

func (skl *xLockFreeSkl[T]) Levels() int32 {
	return atomic.LoadInt32(&skl.levels)
}

func (skl *xLockFreeSkl[T]) raiseLevels(level int32) {
	for {
		old := atomic.LoadInt32(&skl.levels)
		if level <= old || atomic.CompareAndSwapInt32(&skl.levels, old, level) {
			return
		}
	}
}

// search records, for every level in [0, fromLevel], the predecessor
// whose forward slot should address key's position and its current
// successor. Marked successors encountered on the way are spliced out;
// a failed splice restarts the whole descent, because the footprint
// above the failure may already be stale.
//
// Returns whether succs[0] holds a live node equivalent to key. The
// final level-0 comparison is the linearization point of a lookup.
func (skl *xLockFreeSkl[T]) search(key T, fromLevel int32, aux sklAux[T]) bool {
retry:
	for {
		pred := skl.head
		for l := fromLevel; l >= 0; l-- {
			cur, _ := pred.next[l].load()
			for cur != nil {
				ref := cur.next[l].loadRef()
				if ref.marked {
					// cur's outgoing link is marked: splice cur out of
					// this level and re-read pred's slot.
					if !pred.next[l].compareAndSet(cur, ref.succ, false, false) {
						continue retry
					}
					cur, _ = pred.next[l].load()
					continue
				}
				if skl.cmp(cur.value, key) < 0 {
					pred = cur
					cur = ref.succ
					continue
				}
				break
			}
			aux.storePred(l, pred)
			aux.storeSucc(l, cur)
		}
		succ := aux.loadSucc(0)
		return succ != nil && skl.cmp(succ.value, key) == 0
	}
}

// Insert links value into the list, returning false if an equivalent
// value is already present. Transient contention is retried internally
// until the insert linearizes one way or the other.
func (skl *xLockFreeSkl[T]) Insert(value T) bool {
	var (
		aux   = skl.pool.loadAux()
		level = skl.randLevel()
		bo    = newSklBackoff()
	)
	defer skl.pool.releaseAux(aux)

	fromLevel := skl.Levels() - 1
	if level-1 > fromLevel {
		fromLevel = level - 1
	}
	for {
		if skl.search(value, fromLevel, aux) {
			// Equivalent live element observed; de-duplicate.
			return false
		}
		n := newXLockFreeSklNode(value, level)
		for l := int32(0); l < level; l++ {
			n.next[l].store(aux.loadSucc(l), false)
		}
		// Publication at level 0 is the linearization point of the
		// insert. The CAS's release ordering makes value, level and the
		// initialized slots visible to any subsequent reader.
		if !aux.loadPred(0).next[0].compareAndSet(aux.loadSucc(0), n, false, false) {
			bo.once()
			continue
		}
		for l := int32(1); l < level; l++ {
			for {
				ref := n.next[l].loadRef()
				if ref.marked || n.flags.atomicIsSet(nodeDeleted) {
					// Erased mid-publish. The erase owns the remaining
					// levels; finishing the linking here would resurrect
					// a dead node in the upper chains.
					return true
				}
				succ := aux.loadSucc(l)
				if ref.succ != succ && !n.next[l].compareAndSet(ref.succ, succ, false, false) {
					continue
				}
				if aux.loadPred(l).next[l].compareAndSet(succ, n, false, false) {
					break
				}
				// Footprint stale at this level; re-search refreshes it.
				skl.search(value, fromLevel, aux)
			}
		}
		skl.raiseLevels(level)
		return true
	}
}

// Find returns a cursor at the live node equivalent to key, or the end
// cursor.
func (skl *xLockFreeSkl[T]) Find(key T) *SklCursor[T] {
	aux := skl.pool.loadAux()
	defer skl.pool.releaseAux(aux)
	if skl.search(key, skl.Levels()-1, aux) {
		return &SklCursor[T]{node: aux.loadSucc(0)}
	}
	return skl.End()
}

// Erase logically deletes the node c refers to. The CAS that marks the
// node's outgoing level-0 slot is the linearization point; exactly one
// caller wins it. Physical unlinking is handed to a fresh search, and
// any leftovers to later traversals.
func (skl *xLockFreeSkl[T]) Erase(c *SklCursor[T]) bool {
	if c == nil || c.node == nil || c.node == skl.head {
		return false
	}
	n := c.node
	for l := n.level - 1; l >= 1; l-- {
		for {
			ref := n.next[l].loadRef()
			if ref.marked {
				break
			}
			n.next[l].compareAndSet(ref.succ, ref.succ, false, true)
		}
	}
	for {
		ref := n.next[0].loadRef()
		if ref.marked {
			// A concurrent eraser won level 0.
			return false
		}
		if n.next[0].compareAndSet(ref.succ, ref.succ, false, true) {
			n.flags.atomicSet(nodeDeleted)
			aux := skl.pool.loadAux()
			skl.search(n.value, skl.Levels()-1, aux)
			skl.pool.releaseAux(aux)
			return true
		}
	}
}

// Begin returns a cursor at the first live element, splicing out any
// logically deleted head successors it walks over.
func (skl *xLockFreeSkl[T]) Begin() *SklCursor[T] {
	for {
		cur, _ := skl.head.next[0].load()
		if cur == nil {
			return skl.End()
		}
		ref := cur.next[0].loadRef()
		if !ref.marked {
			return &SklCursor[T]{node: cur}
		}
		skl.head.next[0].compareAndSet(cur, ref.succ, false, false)
	}
}

func (skl *xLockFreeSkl[T]) End() *SklCursor[T] {
	return &SklCursor[T]{}
}

// Foreach walks the live level-0 chain in ascending order until fn
// returns false. Concurrent mutation is observed as a serializable
// interleaving, not a snapshot.
func (skl *xLockFreeSkl[T]) Foreach(fn func(idx int64, value T) bool) {
	idx := int64(0)
	cur, _ := skl.head.next[0].load()
	for cur != nil {
		succ, marked := cur.next[0].load()
		if marked {
			cur = succ
			continue
		}
		if !fn(idx, cur.value) {
			return
		}
		idx++
		cur = succ
	}
}
