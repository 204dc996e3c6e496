package scheduler

import (
	"sync"
	"time"

	"github.com/nedma/taskscheduler/internal/platform"
	"github.com/nedma/taskscheduler/internal/queue"
	"github.com/nedma/taskscheduler/internal/stackarray"
)

// readyEntry is one fiber waiting to be resumed, plus the wait result to
// deliver it if it was parked on a group (ignored if it merely yielded).
type readyEntry struct {
	f          *fiber
	waitResult bool
}

// readyQueue is the small, bounded, FIFO-ordered "ready to resume"
// queue each worker owns (spec.md §4.5). FIFO is preferred per spec.md
// §4.5 ("ready_fibers queue ... FIFO ordering preferred"), unlike the
// task queue, which is LIFO - hence its own minimal type here rather
// than reuse of internal/queue.LIFO.
type readyQueue struct {
	mu       sync.Mutex
	items    []readyEntry
	capacity int
}

func newReadyQueue(capacity int) *readyQueue {
	return &readyQueue{items: make([]readyEntry, 0, capacity), capacity: capacity}
}

func (q *readyQueue) pushBack(e readyEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, e)
	return true
}

func (q *readyQueue) popFront() (readyEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return readyEntry{}, false
	}
	e := q.items[0]
	copy(q.items, q.items[1:])
	q.items = q.items[:len(q.items)-1]
	return e, true
}

func (q *readyQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// workerThread owns one task queue and one ready-fiber queue, and runs
// the scheduling loop described by spec.md §4.5. It is the Go
// translation of the teacher's M (toysched7.go): the worker's own
// goroutine plays the role of both M and its "scheduler fiber" - Go's
// own goroutine scheduling already gives us the cheap context the
// original manually carved out a dedicated scheduler_fiber for, so no
// separate type is needed.
type workerThread struct {
	idx       int
	scheduler *Scheduler

	taskQueue  *queue.LIFO[TaskDesc]
	readyQueue *readyQueue

	wake *platform.Event // Automatic
	rng  *platform.LcgRandom

	tasksRun platform.Counter
	_        platform.CacheLinePad

	// stealScratch holds the pseudo-random victim permutation built by
	// stealOrder, every scheduling-loop iteration, on this worker's own
	// goroutine only. A fixed-capacity stackarray.Array (spec.md §2's
	// "stack array", ≈3%) instead of a freshly `make`'d slice keeps this
	// hot path allocation-free after the first build.
	stealScratch *stackarray.Array[int]

	stop chan struct{}
	done chan struct{}
}

func newWorkerThread(idx int, s *Scheduler) *workerThread {
	rng := platform.NewLcgRandom()
	rng.SetSeed(uint32(idx)*2654435761 + 1)
	n := len(s.workers)
	if n == 0 {
		n = s.cfg.WorkerCount
	}
	return &workerThread{
		idx:          idx,
		scheduler:    s,
		taskQueue:    queue.NewLIFO[TaskDesc](s.cfg.MaxTasksPerWorkerQueue),
		readyQueue:   newReadyQueue(s.cfg.MaxTasksPerWorkerQueue),
		wake:         platform.NewEvent(platform.Automatic),
		rng:          rng,
		stealScratch: stackarray.New[int](n),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// stealOrder returns a pseudo-random permutation of the other workers'
// indices, per spec.md §4.5 step 3 / §9 ("Stealing RNG"). It reuses
// w.stealScratch's backing storage across calls rather than allocating a
// fresh slice on every scheduling-loop iteration.
func (w *workerThread) stealOrder() []int {
	w.stealScratch.Reset()
	for i := 0; i < len(w.scheduler.workers); i++ {
		if i != w.idx {
			w.stealScratch.PushBack(i)
		}
	}
	order := w.stealScratch.Slice()
	for i := len(order) - 1; i > 0; i-- {
		j := int(w.rng.Get()) % (i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// run is the scheduling loop (spec.md §4.5). It is launched once per
// worker at scheduler construction and exits on Shutdown's close(w.stop)
// or, defensively, if the scheduler's errgroup context is ever cancelled
// (e.g. a sibling worker goroutine returning an error) - the latter is
// the ordinary errgroup.WithContext idiom (see DESIGN.md), so that one
// worker's failure stops the rest instead of leaving them polling forever.
func (w *workerThread) run() {
	defer close(w.done)
	for {
		if w.step() {
			continue
		}
		select {
		case <-w.stop:
			w.drainReady()
			return
		case <-w.scheduler.egCtx.Done():
			w.drainReady()
			return
		default:
		}
		w.wake.Wait(w.scheduler.cfg.WorkerParkTimeout)
	}
}

// step performs one iteration of the 5-step loop, reporting whether it
// made progress (so run can avoid parking when there is more to do).
func (w *workerThread) step() bool {
	if e, ok := w.readyQueue.popFront(); ok {
		out := e.f.switchTo(w, resumeMsg{waitResult: e.waitResult})
		w.handleOutcome(e.f, out)
		return true
	}

	if desc, ok := w.taskQueue.Pop(); ok {
		return w.dispatch(desc)
	}

	for _, victim := range w.stealOrder() {
		if desc, ok := w.scheduler.workers[victim].taskQueue.TrySteal(); ok {
			return w.dispatch(desc)
		}
	}
	if desc, ok := w.scheduler.overflow.TrySteal(); ok {
		return w.dispatch(desc)
	}

	return false
}

// dispatch leases a fiber for desc and runs it. If no fiber is
// available within the configured retry window, desc is requeued (never
// dropped - see requeueUnleased) and the step reports no progress, so
// the caller falls through to parking rather than blocking indefinitely
// - see fiberPool's doc comment.
func (w *workerThread) dispatch(desc TaskDesc) bool {
	f, ok := w.scheduler.fiberPool.tryAcquire(w.scheduler.cfg.FiberAcquireRetryInterval)
	if !ok {
		w.requeueUnleased(desc)
		w.scheduler.stats.fiberWaits.Inc()
		return false
	}
	out := f.switchTo(w, resumeMsg{task: &desc})
	w.handleOutcome(f, out)
	w.tasksRun.Inc()
	return true
}

// requeueUnleased places desc back on this worker's own queue, falling
// back to the scheduler-wide overflow queue, after a fiber-acquire miss.
// desc was already popped or stolen from a queue (its group's outstanding
// count is already incremented), so unlike RunTasks/enqueueOne this path
// has nowhere to report a SUBMISSION error to - both queues being
// momentarily full is handled by retrying the local queue in a bounded
// sleep loop rather than discarding desc, which would otherwise leave its
// group's outstanding count permanently non-zero (spec.md §8's "never
// silently drop").
func (w *workerThread) requeueUnleased(desc TaskDesc) {
	if w.taskQueue.Push(desc) {
		return
	}
	if w.scheduler.overflow.Push(desc) {
		for _, other := range w.scheduler.workers {
			other.wake.Set()
		}
		return
	}
	for !w.taskQueue.Push(desc) {
		time.Sleep(time.Millisecond)
	}
}

func (w *workerThread) handleOutcome(f *fiber, out fiberOutcome) {
	switch out.kind {
	case outcomeFinished:
		task := f.currentTask
		f.currentTask = nil
		w.scheduler.fiberPool.release(f)
		if task != nil {
			w.scheduler.completeTask(*task)
		}
	case outcomeYielded:
		if !w.readyQueue.pushBack(readyEntry{f: f}) {
			w.scheduler.log.Warn().Int("worker", w.idx).Msg("ready queue full on yield; retrying self")
			for !w.readyQueue.pushBack(readyEntry{f: f}) {
				time.Sleep(time.Millisecond)
			}
		}
	case outcomeParked:
		// Already recorded on the target group's parked list by
		// FiberContext.WaitGroup; nothing further to do here.
	}
}

func (w *workerThread) drainReady() {
	// By protocol (spec.md §4.5 step 5) ready_fibers must be empty at
	// shutdown - no tasks in flight. This is a defensive best-effort
	// drain, not a correctness requirement.
	for {
		if _, ok := w.readyQueue.popFront(); !ok {
			return
		}
	}
}

func (w *workerThread) requestStop() {
	close(w.stop)
	w.wake.Set()
}
