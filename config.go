package scheduler

import (
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// Config configures a Scheduler at construction (spec.md §6).
type Config struct {
	// WorkerCount is the number of worker goroutines. Zero selects
	// runtime.GOMAXPROCS(0) (no third-party GOMAXPROCS-detection library
	// is actually exercised anywhere in the example pack - see
	// SPEC_FULL.md §2 - so the stdlib runtime package is used directly).
	WorkerCount int

	// FiberCount is the size of the fiber pool. Must be >= WorkerCount.
	// Zero selects WorkerCount*2, a reasonable default covering one
	// executing and one suspended fiber per worker.
	FiberCount int

	// StackSizeBytes is the size of each fiber's guard-paged scratch
	// arena, rounded up to whole OS pages by internal/stackalloc. Zero
	// selects 64KiB, matching spec.md §6's documented default.
	StackSizeBytes int

	// MaxTasksPerWorkerQueue bounds each worker's local task queue and
	// ready-fiber queue. Must be a power of two (spec.md §6). Zero
	// selects 4096, matching spec.md §4.2's "sized for a frame's worth
	// of tasks" guidance.
	MaxTasksPerWorkerQueue int

	// OverflowQueueSize bounds the scheduler-wide overflow queue used
	// when a worker's own queue is full (DESIGN.md Open Question (a)).
	// Zero selects MaxTasksPerWorkerQueue.
	OverflowQueueSize int

	// WorkerParkTimeout bounds how long an idle worker sleeps on its
	// wake event before re-checking for work, so a missed wake signal
	// (e.g. a race against Shutdown) cannot park a worker forever. Zero
	// selects 10ms.
	WorkerParkTimeout time.Duration

	// FiberAcquireRetryInterval bounds how long a worker's dispatch step
	// waits for a fiber to free up before giving up for this iteration
	// and requeuing the task. Zero selects 1ms.
	FiberAcquireRetryInterval time.Duration

	// ReaperInterval is how often parked fibers are scanned for expired
	// wait_group deadlines. Zero selects 5ms.
	ReaperInterval time.Duration

	// Logger receives structured scheduler/worker/fiber/group events. A
	// nil Logger disables logging (zerolog.Nop()), matching
	// logiface-zerolog's convention of an injected, optional logger
	// rather than a package-global one.
	Logger *zerolog.Logger
}

func (c Config) withDefaults() (Config, error) {
	if c.WorkerCount <= 0 {
		c.WorkerCount = runtime.GOMAXPROCS(0)
	}
	if c.FiberCount <= 0 {
		c.FiberCount = c.WorkerCount * 2
	}
	if c.FiberCount < c.WorkerCount {
		return c, fmt.Errorf("scheduler: fiber_count (%d) must be >= worker_count (%d)", c.FiberCount, c.WorkerCount)
	}
	if c.StackSizeBytes <= 0 {
		c.StackSizeBytes = 64 * 1024
	}
	if c.MaxTasksPerWorkerQueue <= 0 {
		c.MaxTasksPerWorkerQueue = 4096
	}
	if c.MaxTasksPerWorkerQueue&(c.MaxTasksPerWorkerQueue-1) != 0 {
		return c, fmt.Errorf("scheduler: max_tasks_per_worker_queue (%d) must be a power of two", c.MaxTasksPerWorkerQueue)
	}
	if c.OverflowQueueSize <= 0 {
		c.OverflowQueueSize = c.MaxTasksPerWorkerQueue
	}
	if c.WorkerParkTimeout <= 0 {
		c.WorkerParkTimeout = 10 * time.Millisecond
	}
	if c.FiberAcquireRetryInterval <= 0 {
		c.FiberAcquireRetryInterval = time.Millisecond
	}
	if c.ReaperInterval <= 0 {
		c.ReaperInterval = 5 * time.Millisecond
	}
	return c, nil
}
