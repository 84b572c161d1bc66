// Package api
// Author: momentics
//
// Scheduler contract for periodic poller execution on fixed execution contexts.

package api

// PollFunc is one tick of a registered poller. It returns the amount of work
// done; zero lets the execution context back off.
type PollFunc func(arg any) int

// Slot is the registration handle returned by Scheduler.Register.
type Slot interface {
	// Context returns the execution context the slot is registered on.
	Context() ExecContext
}

// Scheduler invokes registered pollers periodically, single-threaded per context.
type Scheduler interface {
	// Register binds fn(arg) to ctx. The first invocation happens on ctx's
	// goroutine strictly after Register returns.
	Register(ctx ExecContext, fn PollFunc, arg any) (Slot, error)

	// Unregister stops invocations of slot. Once it returns no further
	// invocation occurs. Called from the slot's own callback, the in-flight
	// invocation is the one making the call.
	Unregister(slot Slot) error
}
