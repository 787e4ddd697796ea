package item

import "errors"

// Typed errors returned by store and coordinator operations. Callers match
// with errors.Is; transports map them to protocol status codes.
var (
	// ErrNotFound indicates an unknown work item id.
	ErrNotFound = errors.New("work item not found")

	// ErrInvalidState indicates the requested transition is not legal from
	// the item's current status.
	ErrInvalidState = errors.New("transition not allowed from current status")

	// ErrAlreadyClaimed indicates the caller lost a claim race: another
	// agent claimed the item first.
	ErrAlreadyClaimed = errors.New("work item already claimed")

	// ErrForbidden indicates an agent identity mismatch on an operation
	// that requires the current claimant.
	ErrForbidden = errors.New("agent does not hold this work item")

	// ErrSubscriberOverflow is reported to a change-feed subscriber that
	// fell too far behind and was detached.
	ErrSubscriberOverflow = errors.New("subscriber buffer overflow")
)
