package list

// SklCursor is a forward cursor over the live level-0 chain. It pins
// the node it points at, so dereference stays safe even after another
// goroutine erases the node: value and the forward slots of a deleted
// node remain readable, and its outgoing chain still leads back into
// the list. The runtime keeps the memory alive for exactly as long as
// some cursor or chain can reach it.
//
// The zero SklCursor is the end cursor.
type SklCursor[T any] struct {
	node *xLockFreeSklNode[T]
}

// Next advances to the next live element. Logically deleted successors
// are skipped, helping their physical unlink along the way when the
// held node itself is still linked. Advancing the end cursor is a
// no-op.
func (c *SklCursor[T]) Next() {
	n := c.node
	if n == nil {
		return
	}
	succ, _ := n.next[0].load()
	for succ != nil {
		ref := succ.next[0].loadRef()
		if !ref.marked {
			break
		}
		// Best effort: splice the dead successor out of our held
		// node's chain. Fails harmlessly if n is itself deleted or
		// the chain moved.
		n.next[0].compareAndSet(succ, ref.succ, false, false)
		succ = ref.succ
	}
	c.node = succ
}

// Value reads the element the cursor points at. It is the zero T on
// the end cursor; on any other cursor it is always defined, because a
// node's value is immutable and pinned while the cursor holds it.
func (c *SklCursor[T]) Value() T {
	if c.node == nil {
		var zero T
		return zero
	}
	return c.node.value
}

// Equal reports whether two cursors over the same list address the
// same node. All end cursors compare equal.
func (c *SklCursor[T]) Equal(other *SklCursor[T]) bool {
	if other == nil {
		return c.node == nil
	}
	return c.node == other.node
}
