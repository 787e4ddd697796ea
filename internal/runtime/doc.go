// Package runtime wires storage, the item store, the assignment
// coordinator, and the change feed into a single-node triage instance.
// It exposes Open/Close, a basic health check, and accessors used by the
// HTTP server and CLI.
package runtime
