// Package host drives a looper.Scheduler from a single goroutine.
//
// Runner.Run owns the scheduler: it dispatches due loopers, applies commands
// posted by other goroutines between batches, and sleeps until the next due
// time (bounded by the idle interval). Handlers that run inside a batch use
// Inline to toggle loopers synchronously.
package host
