// File: api/debug.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Probe registry contract behind the target's /debug/state endpoint.

package api

// Debug collects named probes. The target registers reactor stats, session
// and connection counts, and per-subsystem session usage; DumpState runs
// every probe and keys the results by probe name.
type Debug interface {
	// DumpState runs all probes and returns their values.
	DumpState() map[string]any

	// RegisterProbe adds or replaces the probe stored under name.
	RegisterProbe(name string, fn func() any)
}
