package item

import "time"

// Status is the lifecycle state of a work item.
type Status string

const (
	StatusUnassigned Status = "Unassigned"
	StatusClaimed    Status = "Claimed"
	StatusActive     Status = "Active"
	StatusResolved   Status = "Resolved"
)

// Priority is the derived urgency tier of a work item.
type Priority string

const (
	PriorityNormal Priority = "Normal"
	PriorityHigh   Priority = "High"
)

// WorkItem is one customer conversation awaiting or receiving agent help.
// Instances handed to callers are snapshots; all mutation goes through the
// store's transition path.
type WorkItem struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customerName"`
	CreatedAt    time.Time `json:"createdAt"`
	Status       Status    `json:"status"`
	Priority     Priority  `json:"priority"`

	// Agent fields are set iff Status is Claimed or Active.
	AssignedAgentID   string    `json:"assignedAgentId,omitempty"`
	AssignedAgentName string    `json:"assignedAgentName,omitempty"`
	ClaimedAt         time.Time `json:"claimedAt,omitzero"`

	// WaitSeconds is the elapsed wait derived at snapshot time. Presentation
	// layers format it; the core only emits the raw value.
	WaitSeconds int64 `json:"waitSeconds"`
}

// Assigned reports whether an agent currently holds the item.
func (w *WorkItem) Assigned() bool { return w.AssignedAgentID != "" }

// Terminal reports whether the item reached its final state.
func (w *WorkItem) Terminal() bool { return w.Status == StatusResolved }

// CanTransition reports whether the state machine permits moving from
// one status to the next. Forward edges advance one step at a time;
// Claimed and Active may fall back to Unassigned on release.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusUnassigned:
		return to == StatusClaimed
	case StatusClaimed:
		return to == StatusActive || to == StatusUnassigned
	case StatusActive:
		return to == StatusResolved || to == StatusUnassigned
	default:
		// Resolved is terminal.
		return false
	}
}
