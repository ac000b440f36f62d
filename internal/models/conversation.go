package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation pairs two users for messaging. The pair is conceptually
// unordered; the store enforces at most one row per unordered pair.
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	Participant1 uuid.UUID `json:"participant_1"`
	Participant2 uuid.UUID `json:"participant_2"`
	CreatedAt    time.Time `json:"created_at"`
}

// Counterpart returns the other participant for the given user. The second
// return value is false when the user is not part of the conversation.
func (c *Conversation) Counterpart(userID uuid.UUID) (uuid.UUID, bool) {
	switch userID {
	case c.Participant1:
		return c.Participant2, true
	case c.Participant2:
		return c.Participant1, true
	}
	return uuid.Nil, false
}

// ConversationSummary is a conversation enriched for the list view:
// counterpart identity plus a preview of the latest message.
type ConversationSummary struct {
	ID             uuid.UUID  `json:"id"`
	CounterpartID  uuid.UUID  `json:"counterpart_id"`
	Name           string     `json:"name"`
	Avatar         string     `json:"avatar"`
	Preview        string     `json:"preview"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}
