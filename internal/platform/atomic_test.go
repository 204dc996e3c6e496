package platform

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterBasicOps(t *testing.T) {
	var c Counter
	assert.Equal(t, int32(0), c.Load())

	c.Store(5)
	assert.Equal(t, int32(5), c.Load())

	assert.Equal(t, int32(6), c.Inc())
	assert.Equal(t, int32(5), c.Dec())
	assert.Equal(t, int32(8), c.Add(3))

	assert.True(t, c.CompareAndSwap(8, 100))
	assert.Equal(t, int32(100), c.Load())
	assert.False(t, c.CompareAndSwap(8, 200), "CAS must fail once the expected value is stale")
	assert.Equal(t, int32(100), c.Load())
}

func TestCounterConcurrentInc(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	const goroutines, perGoroutine = 8, 1000
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(goroutines*perGoroutine), c.Load())
}
