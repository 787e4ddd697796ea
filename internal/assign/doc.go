// Package assign serializes agent commands against the work item store.
//
// The Coordinator owns the four agent-facing operations (Claim, Activate,
// Release, Resolve) plus Create, decides claim races through the store's
// guarded transition path, publishes one fan-out event per committed
// transition, and fires the transcript side effect after a resolution.
// It also runs the background sweepers: escalation notification and
// stale-claim reclamation.
package assign
