// Package store holds the authoritative in-memory state for all
// non-archived work items.
//
// The store is the sole writer of status and assignment fields. All
// mutation flows through Transition, which serializes per item id:
// a guard callback runs under the item's lock (this is where claim races
// are decided), the state machine is enforced, the new record is written
// through to the journal, and only then does the in-memory state change.
// Reads return snapshots with priority re-derived at the read timestamp,
// so no caller ever observes stale priority.
package store
