package middleware

import (
	"errors"
	"unicode/utf8"
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation id. Provisional keys
// derived by the aggregator are legal identifiers here, so this checks
// shape, not UUID-ness.
func ValidateConversationID(id string) error {
	if len(id) == 0 {
		return errors.New("conversation ID cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("conversation ID exceeds maximum length")
	}
	return nil
}

// ValidateMessageID validates a message id.
func ValidateMessageID(id string) error {
	if len(id) == 0 {
		return errors.New("message ID cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("message ID exceeds maximum length")
	}
	return nil
}
