// File: internal/conn/state.go
// Author: momentics <momentics@gmail.com>
//
// Connection kinds and lifecycle states.

package conn

// Kind selects which storage completion path a connection drains.
type Kind int

const (
	KindAdmin Kind = iota
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindAdmin:
		return "admin"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// State of a connection. Running is left only for one of the two terminal
// states, and never re-entered. A transport error turns FabricDisconnect into
// Exiting within the same tick.
type State int32

const (
	StateIdle State = iota // created, poller not registered
	StateRunning
	StateExiting          // fatal transport error
	StateFabricDisconnect // fabric-level teardown request
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateExiting:
		return "exiting"
	case StateFabricDisconnect:
		return "fabric_disconnect"
	default:
		return "unknown"
	}
}

// Terminal reports whether s triggers teardown at the end of a tick.
func (s State) Terminal() bool {
	return s == StateExiting || s == StateFabricDisconnect
}

// teardownReason labels a teardown by the state it started from.
func (s State) teardownReason() string {
	switch s {
	case StateIdle:
		return "aborted"
	case StateRunning:
		return "admin"
	default:
		return s.String()
	}
}
