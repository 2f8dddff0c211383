package id

// Sequence is a monotonically increasing, concurrency-safe source of
// uint64 values. Implementations never return the same value twice and
// never return zero, so a zero sequence value can be used as a sentinel
// for "unset" by callers (e.g. composite reservoir keys).
type Sequence interface {
	Next() uint64
}

// Gen is the low-level function shape a Sequence is built from.
type Gen func() uint64

var (
	_ Sequence = (*delegatingSequence)(nil)
)

type delegatingSequence struct {
	next Gen
}

func (s *delegatingSequence) Next() uint64 { return s.next() }
