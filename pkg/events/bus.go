// Package events implements the bounded, lossy, in-process broadcast bus
// described in spec.md §4.C. Every Resource Store mutation publishes one
// ResourceEvent; subscribers that fall behind see a LAG event instead of
// blocking the publisher.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// EventType is a closed variant over the kinds of events the bus carries.
type EventType string

const (
	Added    EventType = "ADDED"
	Modified EventType = "MODIFIED"
	Deleted  EventType = "DELETED"
	Error    EventType = "ERROR"
	// Lag is not part of the wire ResourceEvent type set in spec.md, but is
	// delivered out-of-band to subscribers (see Subscription.Lag) so they
	// can trigger the mandatory full resync.
	Lag EventType = "LAG"
)

// ResourceEvent is one published mutation.
type ResourceEvent struct {
	Type            EventType                `json:"type"`
	GVK             schema.GroupVersionKind   `json:"gvk"`
	Key             string                   `json:"key"`
	Object          json.RawMessage          `json:"object,omitempty"`
	ResourceVersion string                   `json:"resourceVersion"`
}

// DefaultCapacity is the bounded channel size per spec.md §4.C.
const DefaultCapacity = 4096

// Subscription is a single subscriber's independent event stream.
type Subscription struct {
	ch     chan ResourceEvent
	lagCh  chan int
	bus    *Bus
	closed bool
}

// Events returns the channel of delivered events.
func (s *Subscription) Events() <-chan ResourceEvent { return s.ch }

// Lag returns a channel that receives the count of events dropped since the
// last lag notification, whenever this subscriber falls behind. A receive
// here means the subscriber MUST perform a full resync (spec.md §9).
func (s *Subscription) Lag() <-chan int { return s.lagCh }

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// Bus is a bounded multi-subscriber broadcast of ResourceEvents. Publish is
// non-blocking: a subscriber whose channel is full is skipped for that
// event, and the drop is counted on its Lag channel instead.
type Bus struct {
	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	capacity int
	log      *slog.Logger
}

// New creates a Bus with the given per-subscriber channel capacity. A
// capacity <= 0 uses DefaultCapacity.
func New(log *slog.Logger, capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		subs:     map[*Subscription]struct{}{},
		capacity: capacity,
		log:      log,
	}
}

// Subscribe registers a new subscriber that will observe every event
// published after this call returns.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{
		ch:    make(chan ResourceEvent, b.capacity),
		lagCh: make(chan int, 1),
		bus:   b,
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(b.subs, s)
	close(s.ch)
}

// Publish fans out evt to every current subscriber. It never blocks: a
// subscriber with a full channel is considered lagging and is notified via
// its Lag channel instead (a lag notification that is still pending is not
// duplicated; the new drop is added to its count).
func (b *Bus) Publish(evt ResourceEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case s.ch <- evt:
		default:
			dropped := 1
			select {
			case pending := <-s.lagCh:
				dropped += pending
			default:
			}
			s.lagCh <- dropped
			b.log.Warn("event bus subscriber lagging, dropping event", "key", evt.Key, "type", evt.Type)
		}
	}
}

// SubscriberCount reports the current number of live subscriptions, mostly
// useful for tests and diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
