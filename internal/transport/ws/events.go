package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeConversationOpen   = "conversation.open"
	EventTypeConversationClose  = "conversation.close"
	EventTypeConversationRead   = "conversation.read"
	EventTypeMessageSend        = "message.send"
	EventTypeTypingInput        = "typing.input"
	EventTypeTypingStart        = "typing.start"
	EventTypeTypingStop         = "typing.stop"
	EventTypeConversationsWatch = "conversations.watch"
	EventTypeConversationsStop  = "conversations.unwatch"
	EventTypePing               = "ping"
)

// Event types - Server → Client
const (
	EventTypeMessagesSnapshot = "messages.snapshot"
	EventTypeMessageNew       = "message.new"
	EventTypeMessageAck       = "message.ack"
	EventTypeTyping           = "typing"
	EventTypeUnread           = "unread"
	EventTypeConversations    = "conversations"
	EventTypeSessionState     = "session.state"
	EventTypePresence         = "presence"
	EventTypePong             = "pong"
	EventTypeError            = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type ConversationPayload struct {
	PartnerID uuid.UUID `json:"partner_id"`
}

type MessageSendPayload struct {
	Content string `json:"content"`
	Nonce   string `json:"nonce,omitempty"`
}

type TypingInputPayload struct {
	Text string `json:"text"`
}

type ConversationsWatchPayload struct {
	Query       string `json:"query"`
	HistoryOnly bool   `json:"history_only"`
}

// --- Server → Client payloads ---

type MessagesSnapshotPayload struct {
	PartnerID uuid.UUID        `json:"partner_id"`
	Messages  []domain.Message `json:"messages"`
}

type MessagePayload struct {
	domain.Message
}

type MessageAckPayload struct {
	Nonce   string          `json:"nonce,omitempty"`
	Message *domain.Message `json:"message"`
}

type TypingPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	IsTyping bool      `json:"is_typing"`
}

type SessionStatePayload struct {
	PartnerID uuid.UUID `json:"partner_id"`
	State     string    `json:"state"`
}

type PresencePayload struct {
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"` // "online" | "offline"
}

// ErrorPayload reports a failed client event. Draft and Nonce are set when a
// send failed so the client can restore the compose field.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Draft   string `json:"draft,omitempty"`
	Nonce   string `json:"nonce,omitempty"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
