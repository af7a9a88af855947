// File: scheduler/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scheduler construction parameters.

package scheduler

import (
	"io"
	"log"
	"time"
)

// WorkerId identifies a worker goroutine, 0..NumWorkers-1.
type WorkerId uint16

// NoAffinity marks a task as runnable on any worker.
const NoAffinity WorkerId = ^WorkerId(0)

// MaxWorkers bounds the number of workers a single Scheduler may own,
// matching the affinity index space assumed by proto/scheduler.hpp's
// SchedulerNode table.
const MaxWorkers = 16

// Config controls how a Scheduler is constructed. The zero value is valid;
// withDefaults fills in every unset field.
type Config struct {
	// NumWorkers is the number of worker goroutines. Clamped to
	// [1, MaxWorkers].
	NumWorkers int

	// DequeCapacityBits sizes each worker's own WorkStealingDeque to
	// 1<<DequeCapacityBits slots (rounded up to a power of two regardless).
	DequeCapacityBits uint

	// StealTimeout bounds how long a thief waits to acquire a victim's
	// deque mutex before giving up and trying the next peer.
	StealTimeout time.Duration

	// PinWorkers, if true, locks each worker goroutine to its OS thread and
	// pins that thread to logical CPU (worker id mod runtime.NumCPU()) via
	// the affinity package at startup. CPUs are shared when there are more
	// workers than CPUs.
	PinWorkers bool

	// MaxTasks bounds the number of tasks that may be in flight
	// (submitted but not yet completed) at once. Must fit in 20 bits
	// (at most 1<<20 - 1); NewScheduler panics otherwise.
	MaxTasks int

	// MaxDependents bounds the number of outstanding predecessor-edges
	// across all in-flight tasks. Same 20-bit limit as MaxTasks.
	MaxDependents int

	// Logger receives scheduler diagnostics. Defaults to a discarding
	// logger, matching the library's policy of never forcing output on a
	// caller that hasn't asked for it.
	Logger *log.Logger
}

func (c Config) withDefaults() Config {
	if c.NumWorkers <= 0 {
		c.NumWorkers = 1
	}
	if c.NumWorkers > MaxWorkers {
		c.NumWorkers = MaxWorkers
	}
	if c.DequeCapacityBits == 0 {
		c.DequeCapacityBits = 10
	}
	if c.StealTimeout <= 0 {
		c.StealTimeout = 200 * time.Microsecond
	}
	if c.MaxTasks <= 0 {
		c.MaxTasks = 1 << 16
	}
	if c.MaxDependents <= 0 {
		c.MaxDependents = c.MaxTasks * 4
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	return c
}
