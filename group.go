package scheduler

import (
	"sync"
	"time"

	"github.com/nedma/taskscheduler/internal/platform"
)

// GroupID identifies one of a closed set of task groups (spec.md §4.4,
// §6). The set size is fixed at MaxGroups; exceeding it is a submission
// error, not a runtime panic, since group ids frequently originate from
// caller-controlled configuration.
type GroupID int32

// MaxGroups is the fixed number of groups a Scheduler tracks, per spec.md
// §6 ("implementations fix N at 32 or similar").
const MaxGroups = 32

// Group0..Group31 are the closed enumeration of task groups.
const (
	Group0 GroupID = iota
	Group1
	Group2
	Group3
	Group4
	Group5
	Group6
	Group7
	Group8
	Group9
	Group10
	Group11
	Group12
	Group13
	Group14
	Group15
	Group16
	Group17
	Group18
	Group19
	Group20
	Group21
	Group22
	Group23
	Group24
	Group25
	Group26
	Group27
	Group28
	Group29
	Group30
	Group31
)

// AssignFromContext means "use the submitting task's own group", resolved
// at submit time (spec.md §4.4).
const AssignFromContext GroupID = -1

func validGroupID(id GroupID) bool {
	return id >= 0 && int(id) < MaxGroups
}

// parkedFiber records a fiber suspended on a group's completion, together
// with its optional wait deadline (spec.md §4.5).
type parkedFiber struct {
	f           *fiber
	deadline    time.Time
	hasDeadline bool
}

// groupState is the per-group record: {outstanding, completion, parked
// list}, per spec.md §4.4. CacheLinePad separates the hot, frequently
// updated outstanding counter from the far colder mutex-guarded parked
// list, per joeycumines-go-utilpkg/eventloop's cache-line padding
// convention (see DESIGN.md).
type groupState struct {
	outstanding platform.Counter
	_           platform.CacheLinePad

	completion *platform.Event // Manual reset

	mu     sync.Mutex
	parked []parkedFiber
}

func newGroupState() *groupState {
	return &groupState{completion: platform.NewEvent(platform.Manual)}
}

// Outstanding returns the number of tasks submitted to this group whose
// entry function has not yet returned.
func (g *groupState) Outstanding() int32 {
	return g.outstanding.Load()
}

// park registers f as waiting on this group's completion, under an
// optional deadline. It checks outstanding under g.mu - the same lock
// completeOne holds across its decrement-to-zero and parked-list drain -
// so a concurrent completion can never be missed (the lost-wakeup
// otherwise possible if the
// last sibling's completeOne ran, saw an empty parked list, and drained
// nothing, before f was appended here). Returns false, without parking,
// if the group had already reached zero outstanding - the caller must
// not suspend in that case.
func (g *groupState) park(f *fiber, deadline time.Time, hasDeadline bool) bool {
	defer platform.ScopedGuard(&g.mu)()
	if g.outstanding.Load() <= 0 {
		return false
	}
	g.parked = append(g.parked, parkedFiber{f: f, deadline: deadline, hasDeadline: hasDeadline})
	return true
}

// completeOne decrements outstanding by one and, if that reaches zero,
// atomically (with respect to park, under g.mu) drains every currently
// parked fiber for the caller to resume. Holding g.mu across both the
// decrement and the drain is what makes park's re-check safe: the two
// critical sections can never interleave, so a fiber is either parked
// before this drain (and is included in it) or park sees outstanding
// already at zero (and never parks at all).
func (g *groupState) completeOne() (reachedZero bool, woken []parkedFiber) {
	defer platform.ScopedGuard(&g.mu)()
	if g.outstanding.Dec() != 0 {
		return false, nil
	}
	woken = g.parked
	g.parked = nil
	return true, woken
}

// reapExpired removes and returns parked fibers whose deadline has
// passed as of now, leaving the rest parked.
func (g *groupState) reapExpired(now time.Time) []parkedFiber {
	defer platform.ScopedGuard(&g.mu)()
	if len(g.parked) == 0 {
		return nil
	}
	var expired []parkedFiber
	kept := g.parked[:0]
	for _, p := range g.parked {
		if p.hasDeadline && !now.Before(p.deadline) {
			expired = append(expired, p)
		} else {
			kept = append(kept, p)
		}
	}
	g.parked = kept
	return expired
}
