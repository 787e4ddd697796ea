package item

import "time"

// DefaultEscalationThreshold is the wait duration beyond which an item is
// promoted to High priority. Deployments override it via configuration.
const DefaultEscalationThreshold = 300 * time.Second

// EvaluatePriority derives the priority tier from elapsed wait time.
// It is a pure function of (createdAt, now): High iff the item has waited
// strictly longer than threshold. A non-positive threshold falls back to
// the default.
func EvaluatePriority(createdAt, now time.Time, threshold time.Duration) Priority {
	if threshold <= 0 {
		threshold = DefaultEscalationThreshold
	}
	if now.Sub(createdAt) > threshold {
		return PriorityHigh
	}
	return PriorityNormal
}

// WaitSeconds returns whole elapsed seconds since createdAt, never negative.
func WaitSeconds(createdAt, now time.Time) int64 {
	d := now.Sub(createdAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
