package list

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/benz9527/xmetrics/lib/infra"
)

// Store the concurrent state.
type flagBits struct {
	bits uint32
}

// Bit flag set from 0 to 1.
func (f *flagBits) atomicSet(bits uint32) {
	for {
		old := atomic.LoadUint32(&f.bits)
		if old&bits == bits {
			return
		}
		if atomic.CompareAndSwapUint32(&f.bits, old, old|bits) {
			return
		}
	}
}

func (f *flagBits) atomicIsSet(bit uint32) bool {
	return (atomic.LoadUint32(&f.bits) & bit) != 0
}

func (f *flagBits) isSet(bit uint32) bool {
	return (f.bits & bit) != 0
}

// sklBackoff spreads contended CAS retry loops. Short waits spin on the
// CPU, longer ones hand the P back to the scheduler.
type sklBackoff uint8

func (b *sklBackoff) once() {
	cycles := *b
	if cycles <= 32 {
		for i := sklBackoff(0); i < cycles; i++ {
			infra.ProcYield(20)
		}
	} else {
		runtime.Gosched()
	}
	if cycles < 128 {
		*b = cycles << 1
	}
}

func newSklBackoff() sklBackoff { return 1 }

// sklAux carries the predecessor and successor footprint of one
// top-down search: preds in the first maxLevel slots, succs in the
// second. Pooled so insert/erase storms do not allocate per retry.
type sklAux[T any] []*xLockFreeSklNode[T]

func (aux sklAux[T]) storePred(level int32, n *xLockFreeSklNode[T]) {
	aux[level] = n
}

func (aux sklAux[T]) loadPred(level int32) *xLockFreeSklNode[T] {
	return aux[level]
}

func (aux sklAux[T]) storeSucc(level int32, n *xLockFreeSklNode[T]) {
	aux[int32(len(aux))>>1+level] = n
}

func (aux sklAux[T]) loadSucc(level int32) *xLockFreeSklNode[T] {
	return aux[int32(len(aux))>>1+level]
}

type sklAuxPool[T any] struct {
	pool *sync.Pool
}

func newSklAuxPool[T any](maxLevel int32) *sklAuxPool[T] {
	return &sklAuxPool[T]{
		pool: &sync.Pool{
			New: func() any {
				return make(sklAux[T], 2*maxLevel)
			},
		},
	}
}

func (p *sklAuxPool[T]) loadAux() sklAux[T] {
	return p.pool.Get().(sklAux[T])
}

func (p *sklAuxPool[T]) releaseAux(aux sklAux[T]) {
	clear(aux) // do not pin nodes beyond the operation
	p.pool.Put(aux)
}
