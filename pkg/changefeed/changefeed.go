package changefeed

import (
	"sync"
	"time"

	"github.com/solidb/solidb/pkg/value"
)

// EventType is the kind of document mutation that produced an Event.
type EventType string

const (
	EventInsert EventType = "Insert"
	EventUpdate EventType = "Update"
	EventDelete EventType = "Delete"
)

// Event is a single document change, published on the owning
// collection's Topic (spec §4.4 Change events).
type Event struct {
	Type       EventType
	Database   string
	Collection string
	Key        string
	New        *value.Value
	Old        *value.Value
	Timestamp  time.Time
}

// subscriberBuffer is the per-subscriber channel capacity; beyond this
// the oldest buffered event is dropped to make room for the newest
// (spec §4.7: "bounded channel with drop-oldest semantics").
const subscriberBuffer = 64

// Subscription is a handle returned by Topic.Subscribe.
type Subscription struct {
	ch    chan *Event
	topic *Topic
}

// C returns the channel subscribers read events from.
func (s *Subscription) C() <-chan *Event { return s.ch }

// Close unsubscribes and releases the channel.
func (s *Subscription) Close() {
	s.topic.unsubscribe(s)
}

// Topic is the single publisher, many-subscriber broadcast channel
// owned by one collection. Publish is totally ordered with respect to
// other Publish calls on the same Topic (spec §5 Ordering guarantees:
// "single publisher per collection-level mutation site").
type Topic struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func NewTopic() *Topic {
	return &Topic{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber and returns its handle.
func (t *Topic) Subscribe() *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	sub := &Subscription{ch: make(chan *Event, subscriberBuffer), topic: t}
	t.subs[sub] = struct{}{}
	return sub
}

func (t *Topic) unsubscribe(sub *Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.subs[sub]; ok {
		delete(t.subs, sub)
		close(sub.ch)
	}
}

// Publish fans an event out to every subscriber without blocking: a
// full subscriber buffer has its oldest event evicted to make room.
func (t *Topic) Publish(ev *Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for sub := range t.subs {
		select {
		case sub.ch <- ev:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}

// SubscriberCount reports the number of live subscriptions.
func (t *Topic) SubscriberCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
