package domain

import "time"

type (
	ConversationID string
	MessageID      string
)

// Conversation is owned by the message store; the realtime layer only
// reads it to resolve participants and room membership.
type Conversation struct {
	ID            ConversationID `json:"id"`
	Participants  []UserID       `json:"participants"`
	LastMessageAt *time.Time     `json:"last_message_at,omitempty"`
}

func (c *Conversation) HasParticipant(u UserID) bool {
	for _, p := range c.Participants {
		if p == u {
			return true
		}
	}
	return false
}

// Others returns the participants except the given user, in insertion order.
func (c *Conversation) Others(u UserID) []UserID {
	out := make([]UserID, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != u {
			out = append(out, p)
		}
	}
	return out
}

// Message is immutable once created; append-only within a conversation.
type Message struct {
	ID             MessageID      `json:"id"`
	ConversationID ConversationID `json:"conversation_id"`
	Sender         UserID         `json:"sender"`
	Body           string         `json:"body"`
	CreatedAt      time.Time      `json:"created_at"`
}
