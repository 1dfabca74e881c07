package domain

import (
	"time"

	"github.com/google/uuid"
)

// TypingSignal is the last typing state FromUserID published towards ToUserID.
type TypingSignal struct {
	FromUserID uuid.UUID `json:"from_user_id"`
	ToUserID   uuid.UUID `json:"to_user_id"`
	IsTyping   bool      `json:"is_typing"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Active reports the effective typing state: a true signal that has not been
// refreshed within staleAfter counts as false.
func (s TypingSignal) Active(now time.Time, staleAfter time.Duration) bool {
	if !s.IsTyping {
		return false
	}
	return now.Sub(s.UpdatedAt) <= staleAfter
}
