package id

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonotonicNonZeroID(t *testing.T) {
	gen, err := MonotonicNonZeroID()
	assert.Nil(t, err)

	seen := make(map[uint64]bool, 1000)
	var prev uint64
	for i := 0; i < 1000; i++ {
		v := gen.Next()
		assert.NotZero(t, v)
		assert.False(t, seen[v], "sequence must never repeat a value")
		assert.Greater(t, v, prev)
		seen[v] = true
		prev = v
	}
}

func TestMonotonicNonZeroID_ConcurrentUnique(t *testing.T) {
	gen, err := MonotonicNonZeroID()
	assert.Nil(t, err)

	const goroutines = 16
	const perGoroutine = 500
	results := make(chan uint64, goroutines*perGoroutine)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				results <- gen.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uint64]bool, goroutines*perGoroutine)
	for v := range results {
		assert.NotZero(t, v)
		assert.False(t, seen[v])
		seen[v] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}
