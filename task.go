package scheduler

import "time"

// Debug color ids, ported from the original's MT_COLOR_* constants
// (MTTaskBase.h). They are stored on TaskDesc.DebugColor as metadata for
// callers; the scheduler itself does not read them and its log lines do
// not include them.
const (
	ColorDefault = 0
	ColorBlue    = 1
	ColorRed     = 2
	ColorYellow  = 3
)

// EntryFunc is a task's entry point: it receives the FiberContext of the
// fiber it is running on (through which it may Yield or WaitGroup) and
// the opaque user payload it was constructed with.
type EntryFunc func(ctx *FiberContext, userData any)

// TaskDesc is a trivially-copyable description of one task (spec.md
// §4.4). Submission copies TaskDescs into worker queues.
type TaskDesc struct {
	Entry      EntryFunc
	UserData   any
	DebugName  string
	DebugColor int

	group GroupID // resolved at submit time; AssignFromContext never stored here
}

// TaskOption configures optional TaskDesc fields.
type TaskOption func(*TaskDesc)

// WithDebugName attaches a human-readable name to the TaskDesc. The
// scheduler's log lines do not include it.
func WithDebugName(name string) TaskOption {
	return func(t *TaskDesc) { t.DebugName = name }
}

// WithDebugColor attaches a debug color id to the TaskDesc. The
// scheduler's log lines do not include it.
func WithDebugColor(color int) TaskOption {
	return func(t *TaskDesc) { t.DebugColor = color }
}

// NewTaskDesc constructs a TaskDesc from a raw entry function and opaque
// payload, per spec.md §6 (`TaskDesc.new`).
func NewTaskDesc(entry EntryFunc, userData any, opts ...TaskOption) TaskDesc {
	t := TaskDesc{Entry: entry, UserData: userData, DebugColor: ColorDefault}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// Runnable lets a task be described as a value with a Run method instead
// of a bare function + opaque payload, mirroring the original's
// TaskBase<T>::TaskEntryPoint adapter (MTTaskBase.h) - spec.md §9's
// "Polymorphism over task types" note, realized as a Go interface rather
// than a C++ base-class template.
type Runnable interface {
	Run(ctx *FiberContext)
}

// NewRunnableTask adapts a Runnable into a TaskDesc, so callers with a
// struct-shaped task don't need to hand-write the (ctx, userData)
// indirection themselves.
func NewRunnableTask(r Runnable, opts ...TaskOption) TaskDesc {
	return NewTaskDesc(func(ctx *FiberContext, userData any) {
		userData.(Runnable).Run(ctx)
	}, r, opts...)
}

// FiberContext is the suspension API (spec.md §4.8) handed to a running
// task's entry function. It lives conceptually on the fiber's own Go
// stack: Yield and WaitGroup block the calling goroutine (the fiber's)
// on a channel handoff back to whichever worker resumes it next, which
// may differ from the worker that last ran it.
type FiberContext struct {
	worker *workerThread
	fiber  *fiber
	task   *TaskDesc
}

// Group returns the group the running task was submitted to, resolving
// what AssignFromContext would mean for any sub-tasks it submits.
func (c *FiberContext) Group() GroupID {
	return c.task.group
}

// Yield re-queues the calling fiber at the tail of its worker's
// ready-fiber queue and returns control to the scheduling loop,
// resuming here once the scheduler switches back to it (spec.md §5,
// suspension point 1).
func (c *FiberContext) Yield() {
	c.fiber.yield(c.worker)
}

// RunTasks submits descs to group from inside a running task, resolving
// AssignFromContext to the calling task's own group before delegating to
// the Scheduler (spec.md §4.6's "if called from inside a running task").
// Go has no ambient per-fiber context to detect this implicitly the way
// the original's thread-local-backed API did, so FiberContext - the
// value every task already receives - is the explicit carrier instead;
// see DESIGN.md's Open Question/design-deviation notes.
func (c *FiberContext) RunTasks(group GroupID, descs []TaskDesc) error {
	if group == AssignFromContext {
		group = c.task.group
	}
	return c.worker.scheduler.RunTasks(group, descs)
}

// WaitGroup parks the calling fiber until group's outstanding count
// reaches zero or timeout elapses, returning true iff the group
// completed within the timeout (spec.md §4.5, suspension point 2). A
// timeout of zero or negative blocks indefinitely.
func (c *FiberContext) WaitGroup(group GroupID, timeout time.Duration) (bool, error) {
	resolved, err := c.worker.scheduler.resolveGroup(group, c.task)
	if err != nil {
		return false, err
	}
	return c.fiber.waitGroup(c.worker, resolved, timeout), nil
}
