// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Transport completion contract consumed by connections.

package api

// Transport is the fabric completion mechanism behind a set of connections.
type Transport interface {
	// PollCompletions drains already-posted completions for ep without
	// blocking. It returns the number processed; an error is fatal for ep.
	PollCompletions(ep Endpoint) (int, error)

	// Release frees transport-side resources of ep. Called once, at teardown.
	Release(ep Endpoint)
}
