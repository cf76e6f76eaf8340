package model

import (
	"time"
)

// EventType represents the type of inbox event published after a mutation.
type EventType string

const (
	EventMessageSent         EventType = "message.sent"
	EventMessageEdited       EventType = "message.edited"
	EventMessageDeleted      EventType = "message.deleted"
	EventConversationDeleted EventType = "conversation.deleted"
	EventConversationRead    EventType = "conversation.read"
)

// InboxEvent is the record published to JetStream when a mutation commits.
type InboxEvent struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id,omitempty"`
	Type           EventType `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
}
