// Package session
// Author: momentics <momentics@gmail.com>
//
// Controller sessions of the target. A Session pairs one admin connection
// with zero or more IO connections and owns the storage completion
// processing they share.
//
// The attached-connection count is the only lifetime authority: it is
// changed by single atomic operations, the detach that drops it to zero is
// reported to its caller, and that caller alone destroys the session.
package session
