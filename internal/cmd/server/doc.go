// Package serverrun boots a triage server process: runtime, sweepers,
// and the HTTP API, with graceful shutdown on signal or context
// cancellation.
package serverrun
