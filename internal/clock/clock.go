// Package clock provides monotonic time sources and cancellable one-shot timers.
//
// Every Scheduler runs timer callbacks on a single logical thread: Manual runs
// them inside Advance, Loop hands them to the goroutine draining Tasks.
package clock

import "time"

// Clock reports monotonic and wall time.
type Clock interface {
	// Now returns monotonic time elapsed since the clock's origin.
	Now() time.Duration
	// Wall returns the current wall-clock time for record keeping.
	Wall() time.Time
}

// Timer is a cancellable one-shot task.
type Timer interface {
	// Stop cancels the task. It reports whether the call prevented the callback from running.
	Stop() bool
}

// Scheduler schedules one-shot callbacks on the owner's thread of control.
type Scheduler interface {
	Clock
	AfterFunc(d time.Duration, f func()) Timer
}
