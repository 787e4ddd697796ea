package assign

import (
	"context"
	"fmt"
	"time"

	"github.com/rzbill/triage/internal/fanout"
	"github.com/rzbill/triage/internal/item"
	"github.com/rzbill/triage/internal/store"
	"github.com/rzbill/triage/internal/transcript"
	logpkg "github.com/rzbill/triage/pkg/log"
)

const transcriptTimeout = 10 * time.Second

// Options configures a Coordinator.
type Options struct {
	Store    *store.Store
	Hub      *fanout.Hub
	Delivery transcript.Delivery
	Logger   logpkg.Logger

	// Now is the clock source; defaults to time.Now.
	Now func() time.Time

	// SweepInterval is the cadence of the background sweepers.
	SweepInterval time.Duration

	// StaleClaimTimeout bounds how long a claim may sit before the
	// sweeper hands the item back. 0 disables reclamation.
	StaleClaimTimeout time.Duration
}

// Coordinator serializes claim/release/resolve requests against the store.
type Coordinator struct {
	store    *store.Store
	hub      *fanout.Hub
	delivery transcript.Delivery
	logger   logpkg.Logger
	now      func() time.Time

	sweepIntv  time.Duration
	staleAfter time.Duration
	sweepStop  chan struct{}
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sweepIntv := opts.SweepInterval
	if sweepIntv <= 0 {
		sweepIntv = 5 * time.Second
	}
	return &Coordinator{
		store:      opts.Store,
		hub:        opts.Hub,
		delivery:   opts.Delivery,
		logger:     logger.With(logpkg.Component("assign")),
		now:        now,
		sweepIntv:  sweepIntv,
		staleAfter: opts.StaleClaimTimeout,
	}
}

func (c *Coordinator) publish(typ fanout.EventType, w item.WorkItem) {
	if c.hub == nil {
		return
	}
	c.hub.Publish(fanout.Event{Type: typ, Item: w, At: c.now()})
}

// Create registers a new inbound conversation and returns the allocated
// item.
func (c *Coordinator) Create(ctx context.Context, customerName string) (item.WorkItem, error) {
	w, err := c.store.Create(ctx, customerName, func(w item.WorkItem) {
		c.publish(fanout.EventCreated, w)
	})
	if err != nil {
		return item.WorkItem{}, err
	}
	c.logger.Info("work item created",
		logpkg.Str("id", w.ID),
		logpkg.Str("customer", customerName),
	)
	return w, nil
}

// Get returns a fresh snapshot of one item.
func (c *Coordinator) Get(itemID string) (item.WorkItem, error) {
	return c.store.Get(itemID)
}

// ListClaimable returns the claimable queue in assignment order.
func (c *Coordinator) ListClaimable() []item.WorkItem {
	return c.store.ListClaimable()
}

// Stats summarizes the live queue.
func (c *Coordinator) Stats() store.Stats {
	return c.store.Stats()
}

// Claim reserves an Unassigned item for one agent. Exactly one of two
// concurrent claims on the same id succeeds; the loser observes
// item.ErrAlreadyClaimed.
func (c *Coordinator) Claim(ctx context.Context, itemID, agentID, agentName string) (item.WorkItem, error) {
	w, err := c.store.Transition(ctx, itemID, item.StatusClaimed,
		func(cur item.WorkItem) error {
			if cur.Assigned() {
				return fmt.Errorf("held by %s: %w", cur.AssignedAgentID, item.ErrAlreadyClaimed)
			}
			return nil
		},
		func(w *item.WorkItem) {
			w.AssignedAgentID = agentID
			w.AssignedAgentName = agentName
			w.ClaimedAt = c.now()
		},
		func(w item.WorkItem) { c.publish(fanout.EventClaimed, w) },
	)
	if err != nil {
		return item.WorkItem{}, err
	}
	c.logger.Info("item claimed", logpkg.Str("id", itemID), logpkg.Str("agent", agentID))
	return w, nil
}

// Activate marks a claimed item as actively being handled. Only the
// claimant may activate.
func (c *Coordinator) Activate(ctx context.Context, itemID, agentID string) (item.WorkItem, error) {
	w, err := c.store.Transition(ctx, itemID, item.StatusActive,
		func(cur item.WorkItem) error {
			if cur.Status == item.StatusClaimed && cur.AssignedAgentID != agentID {
				return item.ErrForbidden
			}
			return nil
		},
		nil,
		func(w item.WorkItem) { c.publish(fanout.EventActivated, w) },
	)
	if err != nil {
		return item.WorkItem{}, err
	}
	c.logger.Info("item activated", logpkg.Str("id", itemID), logpkg.Str("agent", agentID))
	return w, nil
}

// Release hands a claimed or active item back to the queue. Used on agent
// disconnect or explicit hand-back.
func (c *Coordinator) Release(ctx context.Context, itemID, agentID string) (item.WorkItem, error) {
	w, err := c.store.Transition(ctx, itemID, item.StatusUnassigned,
		func(cur item.WorkItem) error {
			if cur.Assigned() && cur.AssignedAgentID != agentID {
				return item.ErrForbidden
			}
			return nil
		},
		clearAssignment,
		func(w item.WorkItem) { c.publish(fanout.EventReleased, w) },
	)
	if err != nil {
		return item.WorkItem{}, err
	}
	c.logger.Info("item released", logpkg.Str("id", itemID), logpkg.Str("agent", agentID))
	return w, nil
}

// Resolution carries the agent's closing notes for the transcript.
type Resolution struct {
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
	Summary  string `json:"summary"`
}

// Resolve finishes an active item. The transcript side effect runs
// asynchronously; its failure never rolls back the resolution.
func (c *Coordinator) Resolve(ctx context.Context, itemID, agentID string, res Resolution) (item.WorkItem, error) {
	var agentName string
	w, err := c.store.Transition(ctx, itemID, item.StatusResolved,
		func(cur item.WorkItem) error {
			if cur.Status == item.StatusActive && cur.AssignedAgentID != agentID {
				return item.ErrForbidden
			}
			return nil
		},
		func(w *item.WorkItem) {
			agentName = w.AssignedAgentName
			clearAssignment(w)
		},
		func(w item.WorkItem) { c.publish(fanout.EventResolved, w) },
	)
	if err != nil {
		return item.WorkItem{}, err
	}
	c.logger.Info("item resolved", logpkg.Str("id", itemID), logpkg.Str("agent", agentID))

	if c.delivery != nil {
		t := transcript.Transcript{
			ThreadID:        w.ID,
			CustomerName:    w.CustomerName,
			AgentName:       agentName,
			ProblemReported: res.Problem,
			SolutionGiven:   res.Solution,
			Summary:         res.Summary,
			ResolutionDate:  c.now(),
		}
		go func() {
			dctx, cancel := context.WithTimeout(context.Background(), transcriptTimeout)
			defer cancel()
			if err := c.delivery.Deliver(dctx, t); err != nil {
				c.logger.Warn("transcript delivery failed",
					logpkg.Str("id", t.ThreadID),
					logpkg.Err(err),
				)
			}
		}()
	}
	return w, nil
}

func clearAssignment(w *item.WorkItem) {
	w.AssignedAgentID = ""
	w.AssignedAgentName = ""
	w.ClaimedAt = time.Time{}
}
