package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rzbill/triage/internal/item"
	"github.com/rzbill/triage/pkg/id"
	logpkg "github.com/rzbill/triage/pkg/log"
)

// Persister is the durable-storage collaborator. The store writes every
// committed record through it; it never reads back during normal
// operation.
type Persister interface {
	SaveItem(ctx context.Context, w item.WorkItem) error
}

// Options configures a Store.
type Options struct {
	// EscalationThreshold is the wait beyond which priority becomes High.
	// Zero selects item.DefaultEscalationThreshold.
	EscalationThreshold time.Duration

	// Now is the clock source; defaults to time.Now. Tests inject it.
	Now func() time.Time

	// Persister receives every committed record. Optional.
	Persister Persister

	Logger logpkg.Logger
}

// Store owns all live work items.
type Store struct {
	mu    sync.RWMutex
	items map[string]*entry

	gen       *id.Generator
	threshold time.Duration
	now       func() time.Time
	persister Persister
	logger    logpkg.Logger
}

// entry pairs one item with its own lock so transitions on different ids
// proceed independently.
type entry struct {
	mu sync.Mutex
	it item.WorkItem

	// escalationSeen marks that the escalation sweep already reported this
	// item crossing the threshold. It only gates notification; reads
	// always re-derive priority.
	escalationSeen bool
}

// New creates an empty Store.
func New(opts Options) *Store {
	if opts.EscalationThreshold <= 0 {
		opts.EscalationThreshold = item.DefaultEscalationThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Store{
		items:     make(map[string]*entry),
		gen:       id.NewGenerator(),
		threshold: opts.EscalationThreshold,
		now:       opts.Now,
		persister: opts.Persister,
		logger:    logger.With(logpkg.Component("store")),
	}
}

// Seed loads previously persisted items, typically at startup recovery.
// Resolved items are skipped; they live on in the journal only. Items
// already past the escalation threshold are marked as announced so a
// restart does not re-publish escalations for old items.
func (s *Store) Seed(items []item.WorkItem) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range items {
		if w.Terminal() {
			continue
		}
		s.items[w.ID] = &entry{
			it:             w,
			escalationSeen: item.EvaluatePriority(w.CreatedAt, now, s.threshold) == item.PriorityHigh,
		}
	}
}

// snapshot derives the caller-visible copy: fresh priority and wait.
func (s *Store) snapshot(w item.WorkItem, now time.Time) item.WorkItem {
	w.Priority = item.EvaluatePriority(w.CreatedAt, now, s.threshold)
	w.WaitSeconds = item.WaitSeconds(w.CreatedAt, now)
	return w
}

// Create allocates a new Unassigned item. onCommit, if non-nil, runs
// with the item's lock still held, so nothing observes or announces the
// item before the creation itself is announced.
func (s *Store) Create(ctx context.Context, customerName string, onCommit func(item.WorkItem)) (item.WorkItem, error) {
	now := s.now()
	w := item.WorkItem{
		ID:           s.gen.NextString(),
		CustomerName: customerName,
		CreatedAt:    now,
		Status:       item.StatusUnassigned,
	}
	if s.persister != nil {
		if err := s.persister.SaveItem(ctx, w); err != nil {
			return item.WorkItem{}, fmt.Errorf("persist create: %w", err)
		}
	}
	e := &entry{it: w}
	e.mu.Lock()
	s.mu.Lock()
	s.items[w.ID] = e
	s.mu.Unlock()
	snap := s.snapshot(w, now)
	if onCommit != nil {
		onCommit(snap)
	}
	e.mu.Unlock()

	s.logger.Debug("item created", logpkg.Str("id", w.ID), logpkg.Str("customer", customerName))
	return snap, nil
}

func (s *Store) entry(itemID string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[itemID]
	return e, ok
}

// Get returns a snapshot of one item.
func (s *Store) Get(itemID string) (item.WorkItem, error) {
	e, ok := s.entry(itemID)
	if !ok {
		return item.WorkItem{}, item.ErrNotFound
	}
	e.mu.Lock()
	w := e.it
	e.mu.Unlock()
	return s.snapshot(w, s.now()), nil
}

// ListClaimable returns all Unassigned items ordered by priority
// descending, then age (oldest first). High-priority items precede Normal
// ones regardless of age; within a tier the queue is FIFO.
func (s *Store) ListClaimable() []item.WorkItem {
	now := s.now()
	out := s.collect(func(w item.WorkItem) bool { return w.Status == item.StatusUnassigned }, now)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority == item.PriorityHigh
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListAll returns snapshots of every live item, unordered.
func (s *Store) ListAll() []item.WorkItem {
	return s.collect(func(item.WorkItem) bool { return true }, s.now())
}

func (s *Store) collect(keep func(item.WorkItem) bool, now time.Time) []item.WorkItem {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.items))
	for _, e := range s.items {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]item.WorkItem, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		w := e.it
		e.mu.Unlock()
		if keep(w) {
			out = append(out, s.snapshot(w, now))
		}
	}
	return out
}

// Transition is the only write path. Under the item's lock it runs guard
// against the current record, checks the state machine for cur->to,
// applies mutate, persists, and commits. Nothing changes on any error.
//
// onCommit, if non-nil, runs before the item's lock is released, so
// per-item announcements happen in commit order: a later transition on
// the same id cannot announce before an earlier one.
func (s *Store) Transition(ctx context.Context, itemID string, to item.Status, guard func(cur item.WorkItem) error, mutate func(w *item.WorkItem), onCommit func(item.WorkItem)) (item.WorkItem, error) {
	e, ok := s.entry(itemID)
	if !ok {
		return item.WorkItem{}, item.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.it
	if guard != nil {
		if err := guard(cur); err != nil {
			return item.WorkItem{}, err
		}
	}
	if !item.CanTransition(cur.Status, to) {
		return item.WorkItem{}, fmt.Errorf("%s -> %s: %w", cur.Status, to, item.ErrInvalidState)
	}

	next := cur
	if mutate != nil {
		mutate(&next)
	}
	next.Status = to

	if s.persister != nil {
		if err := s.persister.SaveItem(ctx, next); err != nil {
			return item.WorkItem{}, fmt.Errorf("persist transition: %w", err)
		}
	}
	e.it = next
	snap := s.snapshot(next, s.now())
	if onCommit != nil {
		onCommit(snap)
	}
	return snap, nil
}

// SweepEscalations returns items that crossed the escalation threshold
// since the last sweep, at most once per item. It never touches status or
// assignment, so it cannot race with transitions in a way that loses
// state.
func (s *Store) SweepEscalations() []item.WorkItem {
	now := s.now()
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.items))
	for _, e := range s.items {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var out []item.WorkItem
	for _, e := range entries {
		e.mu.Lock()
		w := e.it
		if !w.Terminal() && !e.escalationSeen &&
			item.EvaluatePriority(w.CreatedAt, now, s.threshold) == item.PriorityHigh {
			e.escalationSeen = true
			out = append(out, s.snapshot(w, now))
		}
		e.mu.Unlock()
	}
	return out
}

// StaleClaims returns Claimed items whose claim is older than the cutoff.
func (s *Store) StaleClaims(olderThan time.Duration) []item.WorkItem {
	now := s.now()
	cutoff := now.Add(-olderThan)
	return s.collect(func(w item.WorkItem) bool {
		return w.Status == item.StatusClaimed && !w.ClaimedAt.IsZero() && w.ClaimedAt.Before(cutoff)
	}, now)
}

// Stats summarizes the live store.
type Stats struct {
	Unassigned        int   `json:"unassigned"`
	Claimed           int   `json:"claimed"`
	Active            int   `json:"active"`
	Resolved          int   `json:"resolved"`
	HighPriority      int   `json:"highPriority"`
	OldestWaitSeconds int64 `json:"oldestWaitSeconds"`
}

// Stats returns per-status counts and the longest current wait among
// claimable items.
func (s *Store) Stats() Stats {
	var st Stats
	for _, w := range s.ListAll() {
		switch w.Status {
		case item.StatusUnassigned:
			st.Unassigned++
			if w.WaitSeconds > st.OldestWaitSeconds {
				st.OldestWaitSeconds = w.WaitSeconds
			}
		case item.StatusClaimed:
			st.Claimed++
		case item.StatusActive:
			st.Active++
		case item.StatusResolved:
			st.Resolved++
		}
		if w.Priority == item.PriorityHigh && !w.Terminal() {
			st.HighPriority++
		}
	}
	return st
}
