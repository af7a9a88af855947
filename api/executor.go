// Package api
// Author: momentics
//
// Executor is the narrow "just run this closure somewhere" contract a
// caller can depend on without pulling in the full dependency-graph
// Scheduler API. scheduler.Scheduler.AsExecutor adapts onto it for callers
// that only want fire-and-forget submission.

package api

// Executor abstracts a fixed-size pool of worker goroutines willing to run
// arbitrary nullary closures.
type Executor interface {
    // Submit schedules task for execution on some worker, with no ordering
    // or dependency relative to anything else submitted.
    Submit(task func()) error

    // NumWorkers returns current number of active worker routines.
    NumWorkers() int

    // Resize requests a new worker count. An implementation whose pool size
    // is fixed at construction (such as scheduler.Scheduler.AsExecutor)
    // ignores it.
    Resize(newCount int)
}
