// Package platform holds the small cross-cutting primitives the scheduler
// is built on: atomics, a scoped mutex guard, a two-mode event, a
// linear-congruential RNG for steal order, and cache-line padding.
package platform

import "sync/atomic"

// Counter is a non-negative, cross-goroutine shared integer. All stores are
// release operations and all loads are acquire operations under Go's
// memory model (sync/atomic on a shared variable establishes
// happens-before between the write and any read that observes it), which
// is the acquire/release contract the scheduler's group bookkeeping
// depends on.
type Counter struct {
	v atomic.Int32
}

// Load reads the current value (acquire).
func (c *Counter) Load() int32 {
	return c.v.Load()
}

// Store sets the value unconditionally (release).
func (c *Counter) Store(val int32) {
	c.v.Store(val)
}

// Add adds delta and returns the new value (acq_rel).
func (c *Counter) Add(delta int32) int32 {
	return c.v.Add(delta)
}

// Inc increments by one and returns the new value.
func (c *Counter) Inc() int32 {
	return c.v.Add(1)
}

// Dec decrements by one and returns the new value.
func (c *Counter) Dec() int32 {
	return c.v.Add(-1)
}

// CompareAndSwap performs an atomic compare-and-swap.
func (c *Counter) CompareAndSwap(old, new int32) bool {
	return c.v.CompareAndSwap(old, new)
}
