// Package memory implements the repositories in process memory. It backs the
// "memory" store driver and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/internal/domain"
)

type MessageRepo struct {
	mu       sync.RWMutex
	messages []domain.Message
	last     time.Time
	now      func() time.Time
}

func NewMessageRepo() *MessageRepo {
	return &MessageRepo{now: time.Now}
}

// Create assigns a timestamp strictly after the previous message's, even if the
// wall clock stalls or goes backwards, so history always renders in send order.
func (r *MessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	ts := r.now()
	if !ts.After(r.last) {
		ts = r.last.Add(time.Nanosecond)
	}
	r.last = ts
	msg.CreatedAt = ts
	msg.Read = false

	r.messages = append(r.messages, *msg)
	return nil
}

func (r *MessageRepo) ListBetween(_ context.Context, a, b uuid.UUID) ([]domain.Message, error) {
	return r.filter(func(m *domain.Message) bool { return m.Between(a, b) }), nil
}

func (r *MessageRepo) ListDirected(_ context.Context, from, to uuid.UUID) ([]domain.Message, error) {
	return r.filter(func(m *domain.Message) bool { return m.SenderID == from && m.ReceiverID == to }), nil
}

func (r *MessageRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]domain.Message, error) {
	return r.filter(func(m *domain.Message) bool { return m.Involves(userID) }), nil
}

func (r *MessageRepo) MarkRead(_ context.Context, receiverID, senderID uuid.UUID) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var flipped []domain.Message
	for i := range r.messages {
		m := &r.messages[i]
		if m.ReceiverID == receiverID && m.SenderID == senderID && !m.Read {
			m.Read = true
			flipped = append(flipped, *m)
		}
	}
	return flipped, nil
}

func (r *MessageRepo) CountUnread(_ context.Context, receiverID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for i := range r.messages {
		if r.messages[i].UnreadFor(receiverID) {
			n++
		}
	}
	return n, nil
}

func (r *MessageRepo) CountUnreadBySender(_ context.Context, receiverID uuid.UUID) (map[uuid.UUID]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[uuid.UUID]int)
	for i := range r.messages {
		if r.messages[i].UnreadFor(receiverID) {
			counts[r.messages[i].SenderID]++
		}
	}
	return counts, nil
}

func (r *MessageRepo) filter(keep func(*domain.Message) bool) []domain.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Message{}
	for i := range r.messages {
		if keep(&r.messages[i]) {
			out = append(out, r.messages[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(&out[j]) })
	return out
}
