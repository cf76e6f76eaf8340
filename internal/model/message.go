package model

import (
	"time"
)

// Role identifies the kind of party a message belongs to. The requester
// variants map to the portal modules that can write to a counselor.
type Role string

const (
	RoleStudent   Role = "student"
	RoleGuardian  Role = "guardian"
	RoleTeacher   Role = "teacher"
	RoleCounselor Role = "counselor"
	RoleSystem    Role = "system"
)

// RequesterRoles are the roles whose inbox modules peer with counselors.
var RequesterRoles = []Role{RoleStudent, RoleGuardian, RoleTeacher}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleGuardian, RoleTeacher, RoleCounselor, RoleSystem:
		return true
	}
	return false
}

// Message represents a single inbox message.
type Message struct {
	// ID is server-assigned; until the server acknowledges a send, a
	// provisional id lives in both ID and ClientID. ClientID survives
	// acknowledgement so late completions can still be matched.
	ID       string `json:"id"`
	ClientID string `json:"client_id,omitempty"`

	// ConversationID groups messages into a thread. Server-assigned when
	// present; otherwise the aggregator derives a provisional key from the
	// counterpart identity.
	ConversationID string `json:"conversation_id"`

	SenderKind    Role   `json:"sender_kind"`
	SenderID      string `json:"sender_id"`
	SenderName    string `json:"sender_name,omitempty"`
	SenderAvatar  string `json:"sender_avatar,omitempty"`
	RecipientID   string `json:"recipient_id,omitempty"`
	RecipientRole Role   `json:"recipient_role,omitempty"`

	Content string `json:"content"`

	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`

	// IsUnread is true only for messages addressed to the current identity
	// that the server has not marked as read. Once cleared it never goes
	// back to true on this client.
	IsUnread bool `json:"is_unread"`
}

// AuthoredBy reports whether the message was written by the given user.
func (m *Message) AuthoredBy(userID string) bool {
	return m.SenderID == userID
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// EditMessageRequest is the request to edit an existing message.
type EditMessageRequest struct {
	Content string `json:"content"`
}

// ListMessagesResponse is the response for listing a thread's messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
}
