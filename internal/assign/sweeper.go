package assign

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rzbill/triage/internal/fanout"
	"github.com/rzbill/triage/internal/item"
	logpkg "github.com/rzbill/triage/pkg/log"
)

// StartSweeper runs the background loop that publishes escalation events
// and reclaims stale claims. It is a no-op if already running.
func (c *Coordinator) StartSweeper() {
	if c.sweepStop != nil {
		return
	}
	c.sweepStop = make(chan struct{})
	stop := c.sweepStop
	go func() {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		for {
			select {
			case <-stop:
				return
			case <-time.After(c.sweepIntv + time.Duration(rng.Int63n(int64(c.sweepIntv/10+1)))):
				c.SweepOnce(context.Background())
			}
		}
	}()
}

// StopSweeper stops the background sweeper.
func (c *Coordinator) StopSweeper() {
	if c.sweepStop != nil {
		close(c.sweepStop)
		c.sweepStop = nil
	}
}

// SweepOnce performs one sweep tick: notify newly escalated items, then
// hand back stale claims. Exposed for tests and manual triggering.
func (c *Coordinator) SweepOnce(ctx context.Context) {
	for _, w := range c.store.SweepEscalations() {
		c.logger.Info("item escalated",
			logpkg.Str("id", w.ID),
			logpkg.Int64("wait_seconds", w.WaitSeconds),
		)
		c.publish(fanout.EventEscalated, w)
	}

	if c.staleAfter <= 0 {
		return
	}
	for _, stale := range c.store.StaleClaims(c.staleAfter) {
		claimedAt := stale.ClaimedAt
		w, err := c.store.Transition(ctx, stale.ID, item.StatusUnassigned,
			func(cur item.WorkItem) error {
				// skip if the claim changed hands or progressed since the scan
				if cur.Status != item.StatusClaimed || !cur.ClaimedAt.Equal(claimedAt) {
					return errClaimMoved
				}
				return nil
			},
			clearAssignment,
			func(w item.WorkItem) { c.publish(fanout.EventReclaimed, w) },
		)
		if err != nil {
			if !errors.Is(err, errClaimMoved) {
				c.logger.Warn("stale claim reclaim failed",
					logpkg.Str("id", stale.ID),
					logpkg.Err(err),
				)
			}
			continue
		}
		c.logger.Info("stale claim reclaimed",
			logpkg.Str("id", w.ID),
			logpkg.Str("agent", stale.AssignedAgentID),
		)
	}
}

var errClaimMoved = errors.New("claim changed since scan")
