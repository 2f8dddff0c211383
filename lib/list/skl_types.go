package list

import "errors"

// Comparator establishes T's strict weak ordering for the skip list.
// It must return a negative number if a < b, a positive number if a > b,
// and zero if a and b are equivalent (neither a < b nor b < a).
// Equivalent values are treated as duplicates: Insert keeps only one.
type Comparator[T any] func(a, b T) int

// SklDefaultMaxLevel is the default upper bound on node height. The
// concurrent tests exercise 8 and 16; 32 comfortably covers any
// collection size a single process will hold in memory.
const SklDefaultMaxLevel = 32

// sklMaxSupportedLevel bounds the configurable max level so a level
// height always fits the geometric generator's 64-bit draw.
const sklMaxSupportedLevel = 64

var (
	ErrXSklNilComparator   = errors.New("[x-skl] nil comparator")
	ErrXSklInvalidMaxLevel = errors.New("[x-skl] max level out of range")
)

// LockFreeSkipList is an ordered, de-duplicating multi-level skip list
// supporting concurrent insertion, deletion and forward iteration
// without a global lock.
//
// Insert, Erase and Find are lock-free: some goroutine always makes
// progress, but a persistently contended caller may internally retry.
// No operation sleeps on a condition variable.
type LockFreeSkipList[T any] interface {
	// Insert links value into the list. It returns false if an
	// equivalent value is already present (the insert is a no-op).
	Insert(value T) bool
	// Find returns a cursor positioned at the live node whose value is
	// equivalent to key, or the end cursor if no such node exists at
	// the call's linearization point.
	Find(key T) *SklCursor[T]
	// Erase logically deletes the node the cursor refers to. Only the
	// call that performs the logical delete returns true; a concurrent
	// eraser of the same node, or an end cursor, yields false.
	Erase(c *SklCursor[T]) bool
	// Begin returns a cursor at the first live element, or the end
	// cursor when the list is empty.
	Begin() *SklCursor[T]
	// End returns the distinct past-the-end cursor.
	End() *SklCursor[T]
	// Foreach walks the live level-0 chain in ascending order until fn
	// returns false. It observes a serializable sequence of reachable
	// elements, not an atomic snapshot.
	Foreach(fn func(idx int64, value T) bool)
	// Levels reports the tallest node height inserted so far (1 for a
	// list that never held an element). Inserts raise it; erases never
	// lower it.
	Levels() int32
}
