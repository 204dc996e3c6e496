package scheduler

import "errors"

// Submission errors (spec.md §7, "SUBMISSION errors"): returned to the
// caller, never panicked.
var (
	// ErrQueueFull is returned by RunTasks when a task cannot be placed in
	// its target worker's queue nor the scheduler-wide overflow queue.
	// Per DESIGN.md's Open Question (a): the scheduler spills to the
	// overflow queue before giving up, and never silently drops a task.
	ErrQueueFull = errors.New("scheduler: task queue and overflow queue are both full")

	// ErrInvalidGroup is returned for a GroupID outside [0, MaxGroups).
	ErrInvalidGroup = errors.New("scheduler: group id out of range")

	// ErrShutdown is returned by RunTasks once the scheduler has begun or
	// finished shutting down. WaitGroup does not return it.
	ErrShutdown = errors.New("scheduler: submission after shutdown")

	// ErrAssignFromContextOutsideTask is returned when AssignFromContext
	// is used from a call that did not originate on a running task's
	// fiber (there is no "calling task's group" to resolve it to).
	ErrAssignFromContextOutsideTask = errors.New("scheduler: AssignFromContext used outside a running task")
)
