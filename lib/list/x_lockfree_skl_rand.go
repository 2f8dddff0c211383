package list

import (
	"math/bits"
	randv2 "math/rand/v2"
)

// randLevel draws a node height from the geometric distribution with
// P = 1/2 per additional level, truncated to the list's max level.
//
// math/rand/v2's top-level generator keeps per-thread state, so an
// insertion storm never serializes on a global RNG mutex the way
// math/rand's default source does. One 64-bit draw yields the whole
// height: the count of trailing zero bits is geometric(1/2).
func (skl *xLockFreeSkl[T]) randLevel() int32 {
	level := int32(bits.TrailingZeros64(randv2.Uint64()|1<<63)) + 1
	if level > skl.maxLevel {
		return skl.maxLevel
	}
	return level
}
