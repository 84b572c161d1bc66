// File: api/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Collaborator contracts owned by a session: the storage completion
// processor and the backing subsystem.

package api

// CompletionProcessor is the storage-command queue processor of one session.
// Both drain calls are non-blocking and no-ops when nothing is pending.
type CompletionProcessor interface {
	ProcessAdminCompletions() (int, error)
	ProcessIOCompletions() (int, error)

	// Close releases the session-owned completion-queue state.
	Close() error
}

// Subsystem is the backing storage resource a session is bound to.
type Subsystem interface {
	NQN() string

	// ExecContext is the context every connection of the subsystem polls on.
	ExecContext() ExecContext

	// Acquire and Release count the sessions referencing the subsystem.
	Acquire()
	Release()
}
