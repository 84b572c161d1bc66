// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations for the connection-lifecycle core.

package api

import "strconv"

// ExecContext identifies one execution context (a reactor pinned to a core).
// Everything registered against a context runs on that context's goroutine,
// one callback at a time, run-to-completion.
type ExecContext int

func (c ExecContext) String() string {
	return "core" + strconv.Itoa(int(c))
}

// Endpoint is the transport-facing view of a connection.
type Endpoint interface {
	// ID returns the opaque connection identity used in logs and lookups.
	ID() string

	// SignalFabricDisconnect marks the connection for teardown at the end of
	// the current tick. Only valid from the connection's own execution context.
	SignalFabricDisconnect()
}
