package platform

import "sync"

// ScopedGuard acquires mu and returns a function that releases it. Most of
// this package uses a bare `defer mu.Unlock()`, which is the ordinary Go
// idiom; ScopedGuard exists for the handful of call sites (group
// parked-fiber list mutation) where several exit paths make a named guard
// clearer than an implicit defer, mirroring the original's explicit
// ScopedGuard type.
func ScopedGuard(mu *sync.Mutex) func() {
	mu.Lock()
	return mu.Unlock
}
