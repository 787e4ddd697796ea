// Package pebblestore is the durable-storage collaborator for work items.
//
// It wraps a Pebble database with an fsync policy and exposes a Journal
// that round-trips every WorkItem field with millisecond timestamp
// precision under a stable per-item key. The journal is write-through:
// the in-memory store stays authoritative, and the journal is only read
// back for startup recovery and archival queries.
package pebblestore
