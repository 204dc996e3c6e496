package scheduler_test

import (
	"fmt"
	"time"

	scheduler "github.com/nedma/taskscheduler"
)

// Example reproduces the original's Src/main.cpp demo (four tasks
// submitted to one group, polled with WaitGroup) as a godoc Example
// rather than a standalone demo binary - the demo entry point itself is
// explicitly out of scope (spec.md §1), but a documented usage example
// is ordinary ambient Go library tooling.
func Example() {
	s, err := scheduler.New(scheduler.Config{WorkerCount: 4})
	if err != nil {
		panic(err)
	}
	defer s.Shutdown()

	descs := make([]scheduler.TaskDesc, 4)
	for i := range descs {
		descs[i] = scheduler.NewTaskDesc(func(ctx *scheduler.FiberContext, userData any) {
			// simulate a short unit of work
		}, nil, scheduler.WithDebugName(fmt.Sprintf("task-%d", i)))
	}

	if err := s.RunTasks(scheduler.Group0, descs); err != nil {
		panic(err)
	}

	for {
		done, err := s.WaitGroup(scheduler.Group0, 2*time.Second)
		if err != nil {
			panic(err)
		}
		if done {
			fmt.Println("all tasks finished")
			break
		}
	}
	// Output: all tasks finished
}
