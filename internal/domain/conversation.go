package domain

// ConversationEntry is the chat-list row for one partner. It is derived from
// the directory and the message store and never persisted.
type ConversationEntry struct {
	User        UserProfile `json:"user"`
	HasHistory  bool        `json:"has_history"`
	Messages    []Message   `json:"messages"`
	LastMessage *Message    `json:"last_message"`
	UnreadCount int         `json:"unread_count"`
}
