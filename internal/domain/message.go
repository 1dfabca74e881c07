package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a direct message between two users. Only Read ever changes
// after creation, and only from false to true.
type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	Read       bool      `json:"read"`
}

// Between reports whether the message was exchanged by a and b, in either direction.
func (m *Message) Between(a, b uuid.UUID) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// Involves reports whether userID sent or received the message.
func (m *Message) Involves(userID uuid.UUID) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Partner returns the other participant from viewer's point of view.
func (m *Message) Partner(viewer uuid.UUID) uuid.UUID {
	if m.SenderID == viewer {
		return m.ReceiverID
	}
	return m.SenderID
}

// UnreadFor reports whether the message is addressed to viewer and not yet read.
func (m *Message) UnreadFor(viewer uuid.UUID) bool {
	return m.ReceiverID == viewer && !m.Read
}

// Before orders messages by CreatedAt, falling back to ID so equal timestamps
// still sort deterministically.
func (m *Message) Before(o *Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	return m.ID.String() < o.ID.String()
}
