package assign

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/triage/internal/fanout"
	"github.com/rzbill/triage/internal/item"
	"github.com/rzbill/triage/internal/store"
	"github.com/rzbill/triage/internal/transcript"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type captureDelivery struct {
	mu   sync.Mutex
	got  []transcript.Transcript
	done chan struct{}
}

func newCaptureDelivery() *captureDelivery {
	return &captureDelivery{done: make(chan struct{}, 8)}
}

func (d *captureDelivery) Deliver(_ context.Context, t transcript.Transcript) error {
	d.mu.Lock()
	d.got = append(d.got, t)
	d.mu.Unlock()
	d.done <- struct{}{}
	return nil
}

type fixture struct {
	clk   *fakeClock
	coord *Coordinator
	hub   *fanout.Hub
	mail  *captureDelivery
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1000, 0)}
	st := store.New(store.Options{EscalationThreshold: 300 * time.Second, Now: clk.now})
	hub := fanout.NewHub(64, nil)
	t.Cleanup(hub.Close)
	mail := newCaptureDelivery()
	coord := New(Options{
		Store:             st,
		Hub:               hub,
		Delivery:          mail,
		Now:               clk.now,
		StaleClaimTimeout: 10 * time.Minute,
	})
	return &fixture{clk: clk, coord: coord, hub: hub, mail: mail}
}

func TestLifecycleRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.coord.Create(ctx, "ada")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w, err = f.coord.Claim(ctx, w.ID, "p", "Priya"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if w.Status != item.StatusClaimed || w.AssignedAgentID != "p" || w.ClaimedAt.IsZero() {
		t.Fatalf("after claim: %+v", w)
	}
	if w, err = f.coord.Activate(ctx, w.ID, "p"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if w.Status != item.StatusActive {
		t.Fatalf("after activate: %+v", w)
	}
	if w, err = f.coord.Resolve(ctx, w.ID, "p", Resolution{Summary: "fixed"}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if w.Status != item.StatusResolved || w.Assigned() {
		t.Fatalf("after resolve: %+v", w)
	}

	// resolved is terminal for every operation
	if _, err := f.coord.Claim(ctx, w.ID, "q", "Q"); !errors.Is(err, item.ErrInvalidState) {
		t.Fatalf("claim on resolved: %v", err)
	}
	if _, err := f.coord.Activate(ctx, w.ID, "p"); !errors.Is(err, item.ErrInvalidState) {
		t.Fatalf("activate on resolved: %v", err)
	}
	if _, err := f.coord.Release(ctx, w.ID, "p"); !errors.Is(err, item.ErrInvalidState) {
		t.Fatalf("release on resolved: %v", err)
	}
	if _, err := f.coord.Resolve(ctx, w.ID, "p", Resolution{}); !errors.Is(err, item.ErrInvalidState) {
		t.Fatalf("resolve on resolved: %v", err)
	}
}

func TestClaimRaceExactlyOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, _ := f.coord.Create(ctx, "ada")

	type result struct {
		agent string
		err   error
	}
	results := make(chan result, 2)
	start := make(chan struct{})
	for _, agent := range []string{"p", "q"} {
		go func(agent string) {
			<-start
			_, err := f.coord.Claim(ctx, w.ID, agent, agent)
			results <- result{agent: agent, err: err}
		}(agent)
	}
	close(start)

	var winner string
	var losses, wins int
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err == nil {
			wins++
			winner = r.agent
		} else if errors.Is(r.err, item.ErrAlreadyClaimed) {
			losses++
		} else {
			t.Fatalf("unexpected error: %v", r.err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("wins=%d losses=%d, want exactly one of each", wins, losses)
	}
	got, _ := f.coord.Get(w.ID)
	if got.AssignedAgentID != winner {
		t.Fatalf("final holder %q, want race winner %q", got.AssignedAgentID, winner)
	}
}

func TestFailedClaimLeavesQueueIntact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.coord.Create(ctx, "ada")
	f.clk.advance(time.Second)
	b, _ := f.coord.Create(ctx, "bob")

	if _, err := f.coord.Claim(ctx, a.ID, "p", "P"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := f.coord.Claim(ctx, a.ID, "q", "Q"); !errors.Is(err, item.ErrAlreadyClaimed) {
		t.Fatalf("want ErrAlreadyClaimed, got %v", err)
	}

	// the loser is immediately offered the next claimable item
	claimable := f.coord.ListClaimable()
	if len(claimable) != 1 || claimable[0].ID != b.ID {
		t.Fatalf("next claimable: %+v", claimable)
	}
	got, _ := f.coord.Get(a.ID)
	if got.AssignedAgentID != "p" || got.Status != item.StatusClaimed {
		t.Fatalf("losing claim disturbed state: %+v", got)
	}
}

func TestForbiddenOnAgentMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, _ := f.coord.Create(ctx, "ada")
	_, _ = f.coord.Claim(ctx, w.ID, "p", "P")

	if _, err := f.coord.Activate(ctx, w.ID, "q"); !errors.Is(err, item.ErrForbidden) {
		t.Fatalf("activate by stranger: %v", err)
	}
	if _, err := f.coord.Release(ctx, w.ID, "q"); !errors.Is(err, item.ErrForbidden) {
		t.Fatalf("release by stranger: %v", err)
	}

	_, _ = f.coord.Activate(ctx, w.ID, "p")
	if _, err := f.coord.Resolve(ctx, w.ID, "q", Resolution{}); !errors.Is(err, item.ErrForbidden) {
		t.Fatalf("resolve by stranger: %v", err)
	}
	got, _ := f.coord.Get(w.ID)
	if got.Status != item.StatusActive || got.AssignedAgentID != "p" {
		t.Fatalf("item disturbed by forbidden attempts: %+v", got)
	}
}

func TestReleaseReturnsItemToQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, _ := f.coord.Create(ctx, "ada")
	_, _ = f.coord.Claim(ctx, w.ID, "p", "P")

	got, err := f.coord.Release(ctx, w.ID, "p")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if got.Status != item.StatusUnassigned || got.Assigned() || !got.ClaimedAt.IsZero() {
		t.Fatalf("release did not clear assignment: %+v", got)
	}

	// release also works from Active
	_, _ = f.coord.Claim(ctx, w.ID, "q", "Q")
	_, _ = f.coord.Activate(ctx, w.ID, "q")
	if _, err := f.coord.Release(ctx, w.ID, "q"); err != nil {
		t.Fatalf("release from active: %v", err)
	}
	claimable := f.coord.ListClaimable()
	if len(claimable) != 1 || claimable[0].ID != w.ID {
		t.Fatalf("released item not claimable: %+v", claimable)
	}
}

func TestResolveFiresTranscript(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, _ := f.coord.Create(ctx, "ada")
	_, _ = f.coord.Claim(ctx, w.ID, "p", "Priya")
	_, _ = f.coord.Activate(ctx, w.ID, "p")
	_, err := f.coord.Resolve(ctx, w.ID, "p", Resolution{
		Problem:  "login broken",
		Solution: "reset password",
		Summary:  "resolved by reset",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	select {
	case <-f.mail.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("transcript never delivered")
	}
	f.mail.mu.Lock()
	defer f.mail.mu.Unlock()
	tr := f.mail.got[0]
	if tr.ThreadID != w.ID || tr.CustomerName != "ada" || tr.AgentName != "Priya" {
		t.Fatalf("transcript payload: %+v", tr)
	}
	if tr.ProblemReported != "login broken" || tr.SolutionGiven != "reset password" {
		t.Fatalf("resolution notes lost: %+v", tr)
	}
}

func TestEventsPublishedPerTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.hub.Subscribe()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	w, _ := f.coord.Create(ctx, "ada")
	_, _ = f.coord.Claim(ctx, w.ID, "p", "P")
	_, _ = f.coord.Activate(ctx, w.ID, "p")
	_, _ = f.coord.Resolve(ctx, w.ID, "p", Resolution{})

	want := []fanout.EventType{
		fanout.EventCreated, fanout.EventClaimed, fanout.EventActivated, fanout.EventResolved,
	}
	for i, typ := range want {
		select {
		case ev := <-sub.Events():
			if ev.Type != typ {
				t.Fatalf("event[%d] = %s, want %s", i, ev.Type, typ)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing event %s", typ)
		}
	}
}

func TestSweepReclaimsStaleClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, _ := f.coord.Create(ctx, "ada")
	_, _ = f.coord.Claim(ctx, w.ID, "p", "P")

	sub, err := f.hub.Subscribe()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	f.coord.SweepOnce(ctx)
	got, _ := f.coord.Get(w.ID)
	if got.Status != item.StatusClaimed {
		t.Fatalf("fresh claim reclaimed early: %+v", got)
	}

	f.clk.advance(11 * time.Minute)
	f.coord.SweepOnce(ctx)
	got, _ = f.coord.Get(w.ID)
	if got.Status != item.StatusUnassigned || got.Assigned() {
		t.Fatalf("stale claim not reclaimed: %+v", got)
	}

	var sawReclaim bool
	for !sawReclaim {
		select {
		case ev := <-sub.Events():
			if ev.Type == fanout.EventReclaimed && ev.Item.ID == w.ID {
				sawReclaim = true
			}
		case <-time.After(time.Second):
			t.Fatalf("no reclaim event published")
		}
	}
}

func TestSweepSkipsActiveItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, _ := f.coord.Create(ctx, "ada")
	_, _ = f.coord.Claim(ctx, w.ID, "p", "P")
	_, _ = f.coord.Activate(ctx, w.ID, "p")

	f.clk.advance(time.Hour)
	f.coord.SweepOnce(ctx)
	got, _ := f.coord.Get(w.ID)
	if got.Status != item.StatusActive || got.AssignedAgentID != "p" {
		t.Fatalf("active item disturbed by sweeper: %+v", got)
	}
}

func TestSweepPublishesEscalations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, _ := f.coord.Create(ctx, "ada")
	sub, err := f.hub.Subscribe(fanout.WithFilter(`event_type == "escalated"`))
	if err != nil {
		t.Fatalf("subscribe with filter: %v", err)
	}
	defer sub.Close()

	f.clk.advance(301 * time.Second)
	f.coord.SweepOnce(ctx)

	select {
	case ev := <-sub.Events():
		if ev.Item.ID != w.ID || ev.Item.Priority != item.PriorityHigh {
			t.Fatalf("escalation event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no escalation event")
	}

	// a second sweep must not repeat the notification
	f.coord.SweepOnce(ctx)
	select {
	case ev := <-sub.Events():
		t.Fatalf("duplicate escalation: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventOrderMatchesCommitOrder(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	st := store.New(store.Options{EscalationThreshold: 300 * time.Second, Now: clk.now})
	hub := fanout.NewHub(4096, nil)
	coord := New(Options{Store: st, Hub: hub, Now: clk.now})

	sub, err := hub.Subscribe()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ctx := context.Background()
	w, _ := coord.Create(ctx, "ada")

	// hammer one id with competing claim/release cycles; the published
	// stream must replay as a legal walk of the state machine
	var wg sync.WaitGroup
	for _, agent := range []string{"p", "q"} {
		wg.Add(1)
		go func(agent string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if _, err := coord.Claim(ctx, w.ID, agent, agent); err == nil {
					if _, err := coord.Release(ctx, w.ID, agent); err != nil {
						t.Errorf("release: %v", err)
						return
					}
				}
			}
		}(agent)
	}
	wg.Wait()
	hub.Close()

	status := item.StatusUnassigned
	var lastSeq uint64
	for ev := range sub.Events() {
		if ev.Seq <= lastSeq {
			t.Fatalf("sequence went backwards: %d after %d", ev.Seq, lastSeq)
		}
		lastSeq = ev.Seq
		if !item.CanTransition(status, ev.Item.Status) && !(status == item.StatusUnassigned && ev.Type == fanout.EventCreated) {
			t.Fatalf("event stream out of commit order: %s while at %s (seq %d)", ev.Item.Status, status, ev.Seq)
		}
		status = ev.Item.Status
	}
	if status != item.StatusUnassigned && status != item.StatusClaimed {
		t.Fatalf("stream ended in impossible state: %s", status)
	}
}
