// Package realtime fans out store changes to in-process listeners.
package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/internal/domain"
	"github.com/vedran77/reviewhub/pkg/logger"
)

type EventType string

const (
	MessageCreated   EventType = "message.created"
	MessageRead      EventType = "message.read"
	DirectoryChanged EventType = "directory.changed"
)

// Event describes one committed change. Message is set for message events,
// User for directory events.
type Event struct {
	Type    EventType
	Message *domain.Message
	User    *domain.User
}

type Handler func(Event)

// Filter selects the events a subscription receives. A nil filter matches everything.
type Filter func(Event) bool

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

type subscription struct {
	filter  Filter
	handler Handler
	active  atomic.Bool
}

// Broker is an in-memory publisher. Handlers run on the publishing goroutine,
// outside the broker lock, in subscription order.
type Broker struct {
	mu   sync.RWMutex
	subs map[uint64]*subscription
	next uint64
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]*subscription)}
}

// Publish delivers evt to every matching subscription. A panicking handler is
// logged and skipped; the remaining handlers still run.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	matched := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.filter == nil || sub.filter(evt) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		if sub.active.Load() {
			dispatch(sub.handler, evt)
		}
	}
}

func dispatch(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("event", string(evt.Type)).Msg("realtime: listener failed")
		}
	}()
	h(evt)
}

// Subscribe registers handler for events accepted by filter.
func (b *Broker) Subscribe(filter Filter, handler Handler) Unsubscribe {
	sub := &subscription{filter: filter, handler: handler}
	sub.active.Store(true)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// PairFilter matches message events exchanged by a and b in either direction.
func PairFilter(a, b uuid.UUID) Filter {
	return func(evt Event) bool {
		return evt.Message != nil && evt.Message.Between(a, b)
	}
}

// DirectedFilter matches message events sent by from to to.
func DirectedFilter(from, to uuid.UUID) Filter {
	return func(evt Event) bool {
		return evt.Message != nil && evt.Message.SenderID == from && evt.Message.ReceiverID == to
	}
}

// InboxFilter matches message events addressed to viewer.
func InboxFilter(viewer uuid.UUID) Filter {
	return func(evt Event) bool {
		return evt.Message != nil && evt.Message.ReceiverID == viewer
	}
}

// ViewerFilter matches message events involving viewer and every directory change.
func ViewerFilter(viewer uuid.UUID) Filter {
	return func(evt Event) bool {
		if evt.Type == DirectoryChanged {
			return true
		}
		return evt.Message != nil && evt.Message.Involves(viewer)
	}
}
