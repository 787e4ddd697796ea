package fanout

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/triage/internal/item"
	logpkg "github.com/rzbill/triage/pkg/log"
)

// EventType identifies which transition produced an event.
type EventType string

const (
	EventCreated   EventType = "created"
	EventClaimed   EventType = "claimed"
	EventActivated EventType = "activated"
	EventReleased  EventType = "released"
	EventResolved  EventType = "resolved"
	EventEscalated EventType = "escalated"
	EventReclaimed EventType = "reclaimed"
)

// Event is one committed work item transition.
type Event struct {
	Seq  uint64        `json:"seq"`
	Type EventType     `json:"type"`
	Item item.WorkItem `json:"item"`
	At   time.Time     `json:"at"`
}

const defaultBufLen = 64

// Hub fans committed events out to subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	seq    uint64
	bufLen int
	logger logpkg.Logger
	closed bool
}

// NewHub creates a hub whose subscribers each buffer up to bufLen events.
func NewHub(bufLen int, logger logpkg.Logger) *Hub {
	if bufLen <= 0 {
		bufLen = defaultBufLen
	}
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Hub{
		subs:   make(map[string]*Subscription),
		bufLen: bufLen,
		logger: logger.With(logpkg.Component("fanout")),
	}
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	filterExpr string
}

// WithFilter attaches a CEL filter expression; only matching events are
// delivered. An empty expression matches everything.
func WithFilter(expr string) SubscribeOption {
	return func(o *subscribeOptions) { o.filterExpr = expr }
}

// Subscribe registers a new subscriber and returns its subscription.
// The returned error is non-nil only for an invalid filter expression.
func (h *Hub) Subscribe(opts ...SubscribeOption) (*Subscription, error) {
	var o subscribeOptions
	for _, opt := range opts {
		opt(&o)
	}
	filter, err := newFilter(o.filterExpr)
	if err != nil {
		return nil, err
	}

	s := &Subscription{
		id:     uuid.NewString(),
		ch:     make(chan Event, h.bufLen),
		hub:    h,
		filter: filter,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		return s, nil
	}
	h.subs[s.id] = s
	return s, nil
}

// Publish assigns the next sequence number and delivers the event to all
// subscribers without blocking. A subscriber whose buffer is full is
// detached and marked overflowed; the rest are unaffected.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.seq++
	ev.Seq = h.seq
	for id, s := range h.subs {
		if !s.filter.Match(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			s.overflowed.Store(true)
			delete(h.subs, id)
			close(s.ch)
			h.logger.Warn("subscriber dropped on overflow",
				logpkg.Str("subscriber", id),
				logpkg.Int("buffer", h.bufLen),
			)
		}
	}
}

// SubscriberCount returns the number of attached subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close detaches all subscribers and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.ch)
	}
}

// Subscription is one subscriber's ordered view of the change feed.
type Subscription struct {
	id         string
	ch         chan Event
	hub        *Hub
	filter     filter
	overflowed atomic.Bool
	closeOnce  sync.Once
}

// ID returns the subscriber's identifier.
func (s *Subscription) ID() string { return s.id }

// Events returns the ordered event channel. It is closed when the
// subscriber is detached, either by Close or by overflow.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Err reports why the channel closed: item.ErrSubscriberOverflow if the
// subscriber was dropped for falling behind, nil otherwise.
func (s *Subscription) Err() error {
	if s.overflowed.Load() {
		return item.ErrSubscriberOverflow
	}
	return nil
}

// Close detaches the subscriber without affecting others.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		if _, ok := s.hub.subs[s.id]; ok {
			delete(s.hub.subs, s.id)
			close(s.ch)
		}
	})
}
