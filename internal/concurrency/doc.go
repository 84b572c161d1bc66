// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactors, the execution contexts of the target. Each reactor is one
// goroutine, optionally pinned to a CPU, running posted events and registered
// pollers run-to-completion. Group maps configured cores to reactors and
// implements api.Scheduler. Ring is the SPSC queue completion queues use.
package concurrency
