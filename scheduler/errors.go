// File: scheduler/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scheduler

import "github.com/driftwood-rt/taskgraph/api"

// ErrPoolFull is returned by Submit when MaxTasks in-flight tasks are
// already outstanding, or when a live predecessor's edge could not be
// wired because MaxDependents is exhausted. errors.Is(err,
// api.ErrResourceExhausted) also matches. The WithContext call is safe to
// do once here at init time, before any goroutine can observe this var.
var ErrPoolFull = api.NewError(api.ErrCodeResourceExhausted, "taskgraph: task pool is full").
	WithContext("hint", "increase Config.MaxTasks or Config.MaxDependents")

// ErrSchedulerClosed is returned by Submit after Close has been called.
// errors.Is(err, api.ErrNotSupported) also matches.
var ErrSchedulerClosed = api.NewError(api.ErrCodeNotSupported, "taskgraph: scheduler is closed").
	WithContext("hint", "no further Submit calls are accepted once Close or CloseAndWait has run")

// ErrInvalidWorker is returned when an affinity or worker id names a
// worker outside [0, NumWorkers). errors.Is(err, api.ErrInvalidArgument)
// also matches.
var ErrInvalidWorker = api.NewError(api.ErrCodeInvalidArgument, "taskgraph: invalid worker id").
	WithContext("hint", "affinity must be NoAffinity or in [0, NumWorkers)")
