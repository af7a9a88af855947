// File: scheduler/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Context is the handle a running closure uses to submit further work and
// to request shutdown, mirroring the &SchedulerCtx reference the root
// closure receives per spec.md §6. Task closures themselves stay niladic
// (func()) — a closure that wants to submit more work simply captures a
// *Context lexically from whichever call created it, the ordinary Go way
// of threading a dependency through nested functions.

package scheduler

// Context binds Submit and Stop to a specific Scheduler. WorkerId
// identifies which worker the context was originally handed out on (only
// worker 0's context is created by the library itself, via Run); it does
// not track which worker ends up actually running any given closure,
// since stealing can move work between workers after it is submitted.
type Context struct {
	sched *Scheduler
	id    WorkerId
}

func (s *Scheduler) contextFor(id WorkerId) *Context {
	return &Context{sched: s, id: id}
}

// Submit forwards to the underlying Scheduler's Submit.
func (c *Context) Submit(closure func(), predecessors []TaskId, affinity WorkerId) (TaskId, error) {
	return c.sched.Submit(closure, predecessors, affinity)
}

// Stop closes the underlying Scheduler; equivalent to calling Close on it
// directly.
func (c *Context) Stop() {
	c.sched.Close()
}

// WorkerId returns the worker this context was created for.
func (c *Context) WorkerId() WorkerId {
	return c.id
}
