package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single immutable text entry within a conversation.
// IDs are ULIDs, so lexicographic order matches creation order.
type Message struct {
	ID             string    `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
