// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics, and debug introspection of the target.
//
// Provides:
//   - TOML configuration loading and validation
//   - Prometheus metrics for connection and session lifecycles
//   - Named debug probes exported as JSON
package control
