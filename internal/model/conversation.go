// Package model defines data structures for the counseling-portal inbox.
package model

import (
	"errors"
	"time"
)

// ErrConversationNotFound is returned when a conversation id resolves to
// nothing in the current store snapshot.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrMessageNotFound is returned when a message id resolves to nothing.
var ErrMessageNotFound = errors.New("message not found")

// Conversation is a derived thread view. It is never persisted; the
// aggregator recomputes the full set from the message store on every change.
type Conversation struct {
	ID            string    `json:"id"`
	PeerID        string    `json:"peer_id,omitempty"`
	PeerName      string    `json:"peer_name"`
	PeerAvatar    string    `json:"peer_avatar,omitempty"`
	UnreadCount   int       `json:"unread_count"`
	LastMessage   string    `json:"last_message,omitempty"`
	LastTimestamp time.Time `json:"last_timestamp"`
	MessageCount  int       `json:"message_count"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	ActiveID      string         `json:"active_id,omitempty"`
}
