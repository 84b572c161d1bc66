// File: internal/conn/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package conn drives a queue-pair connection through its lifecycle.
//
// A connection is polled from exactly one execution context for its whole
// life. Each tick drains the session's storage completions for the
// connection's kind, then the transport's completions; a fatal transport
// result or a fabric disconnect observed during the tick tears the
// connection down before the tick returns. Teardown is the only place a
// session is destroyed, and only by the connection whose detach brought the
// session's count to zero.
package conn
