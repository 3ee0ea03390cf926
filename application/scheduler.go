package application

import "time"

// Scheduler is a single cooperative timer wheel: callers schedule a
// callback to run at-or-after now+delay, and the scheduler guarantees it
// eventually runs (and is removed) without the caller blocking. It never
// runs two callbacks it holds concurrently with each other; callbacks
// scheduled for the same wake-up fire in the order they were added.
type Scheduler interface {
	// CallLater schedules fn to run no earlier than delay from now.
	CallLater(delay time.Duration, fn func())

	// Run drives the wheel until stopped; it ticks at the implementation's
	// fixed wake-up period and blocks the calling goroutine.
	Run(stop <-chan struct{})
}
