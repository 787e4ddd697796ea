// Package item defines the work item domain model shared by the store,
// coordinator, and transports: the WorkItem record, its status state
// machine, the priority evaluator, and the typed errors returned by
// assignment operations.
package item
