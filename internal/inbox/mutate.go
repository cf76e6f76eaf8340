package inbox

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/counselhub/inbox-sync/internal/model"
	"github.com/counselhub/inbox-sync/internal/upstream"
	"github.com/counselhub/inbox-sync/pkg/metrics"
)

var errNotOwnMessage = errors.New("only self-authored messages can be edited")

// SendMessage applies a local-first send: a provisional message appears in
// the store immediately and the network send runs after the lock is
// released. On acknowledgement the provisional record is replaced by the
// canonical one; if the server assigned a different conversation id, every
// locally held message under the provisional key migrates to it so no
// duplicate thread remains. On failure the provisional message is removed;
// the draft is not restored.
func (e *Engine) SendMessage(ctx context.Context, conversationID, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		metrics.RecordMutation("send", "rejected")
		return nil, validationErr("send", ErrEmptyContent)
	}

	e.mu.Lock()
	recipientID, recipientRole, err := e.resolveRecipientLocked(conversationID)
	if err != nil {
		e.mu.Unlock()
		metrics.RecordMutation("send", "rejected")
		return nil, validationErr("send", err)
	}

	provisionalID := uuid.Must(uuid.NewV7()).String()
	provisional := model.Message{
		ID:             provisionalID,
		ClientID:       provisionalID,
		ConversationID: conversationID,
		SenderKind:     e.self.Role,
		SenderID:       e.self.ID,
		SenderName:     e.self.DisplayName,
		RecipientID:    recipientID,
		RecipientRole:  recipientRole,
		Content:        content,
		CreatedAt:      time.Now(),
		IsUnread:       false,
	}
	e.store.Append(provisional)
	e.recomputeLocked()
	e.mu.Unlock()

	// The server only knows canonical conversation ids; a provisional
	// grouping key stays client-side.
	serverConvID := conversationID
	if strings.HasPrefix(conversationID, "peer:") {
		serverConvID = ""
	}

	canonical, err := e.client.SendMessage(ctx, &upstream.SendRequest{
		ClientID:       provisionalID,
		ConversationID: serverConvID,
		RecipientID:    recipientID,
		RecipientRole:  recipientRole,
		Content:        content,
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		if i := e.store.Index(provisionalID); i >= 0 {
			e.store.RemoveAt(i)
			e.recomputeLocked()
			metrics.RecordRollback("send")
		}
		metrics.RecordMutation("send", "failure")
		return nil, classify("send", err)
	}

	msg := *canonical
	if msg.ClientID == "" {
		msg.ClientID = provisionalID
	}
	if i := e.store.Index(provisionalID); i >= 0 {
		e.store.Set(i, msg)
	} else if i := e.store.Index(msg.ID); i >= 0 {
		// A refresh completed in between and already carries the record.
		e.store.Set(i, msg)
	} else {
		e.store.Append(msg)
	}

	finalKey := ConversationKey(&msg, e.self.ID)
	if finalKey != conversationID {
		e.store.Rekey(e.self.ID, conversationID, finalKey)
		e.read.Rekey(conversationID, finalKey)
		if e.active == conversationID {
			e.active = finalKey
		}
	}
	// Sending counts as opening, so reply-triggered unread updates may
	// auto-clear later in this session.
	e.read.MarkSent(finalKey)
	e.recomputeLocked()

	metrics.RecordMutation("send", "success")
	e.publish(ctx, model.EventMessageSent, finalKey, msg.ID)
	return &msg, nil
}

// EditMessage optimistically overwrites the content of a self-authored
// message in place, preserving id and timestamps, and restores the prior
// content if the upstream rejects the edit.
func (e *Engine) EditMessage(ctx context.Context, messageID, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		metrics.RecordMutation("edit", "rejected")
		return nil, validationErr("edit", ErrEmptyContent)
	}

	e.mu.Lock()
	prior, ok := e.store.Get(messageID)
	if !ok {
		e.mu.Unlock()
		metrics.RecordMutation("edit", "rejected")
		return nil, validationErr("edit", model.ErrMessageNotFound)
	}
	if !prior.AuthoredBy(e.self.ID) {
		e.mu.Unlock()
		metrics.RecordMutation("edit", "rejected")
		return nil, validationErr("edit", errNotOwnMessage)
	}

	optimistic := prior
	optimistic.Content = content
	e.store.Set(e.store.Index(messageID), optimistic)
	e.recomputeLocked()
	e.mu.Unlock()

	canonical, err := e.client.EditMessage(ctx, prior.ID, content)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		if i := e.store.Index(messageID); i >= 0 {
			cur, _ := e.store.Get(messageID)
			cur.Content = prior.Content
			cur.EditedAt = prior.EditedAt
			e.store.Set(i, cur)
			e.recomputeLocked()
			metrics.RecordRollback("edit")
		}
		metrics.RecordMutation("edit", "failure")
		return nil, classify("edit", err)
	}

	i := e.store.Index(messageID)
	if i < 0 {
		// Gone from a refresh in between; nothing to merge into.
		metrics.RecordMutation("edit", "success")
		return canonical, nil
	}
	merged, _ := e.store.Get(messageID)
	merged.Content = canonical.Content
	merged.EditedAt = canonical.EditedAt
	if merged.EditedAt == nil {
		now := time.Now()
		merged.EditedAt = &now
	}
	e.store.Set(i, merged)
	e.recomputeLocked()

	metrics.RecordMutation("edit", "success")
	e.publish(ctx, model.EventMessageEdited, ConversationKey(&merged, e.self.ID), merged.ID)
	out := merged
	return &out, nil
}

// DeleteMessage optimistically removes a single message. A failed delete
// reinserts it at its original position so thread ordering is preserved.
func (e *Engine) DeleteMessage(ctx context.Context, messageID string) error {
	e.mu.Lock()
	i := e.store.Index(messageID)
	if i < 0 {
		e.mu.Unlock()
		metrics.RecordMutation("delete", "rejected")
		return validationErr("delete", model.ErrMessageNotFound)
	}
	removed := e.store.RemoveAt(i)
	e.recomputeLocked()
	e.mu.Unlock()

	err := e.client.DeleteMessage(ctx, removed.ID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.store.Restore([]Removed{{Index: i, Message: removed}})
		e.recomputeLocked()
		metrics.RecordRollback("delete")
		metrics.RecordMutation("delete", "failure")
		return classify("delete", err)
	}

	metrics.RecordMutation("delete", "success")
	e.publish(ctx, model.EventMessageDeleted, ConversationKey(&removed, e.self.ID), removed.ID)
	return nil
}

// DeleteConversation optimistically removes every message in a thread. On
// failure the full removed set is reinserted and the active pointer is
// untouched; on success the thread leaves the opened-set and the active
// pointer is cleared, never advanced to another thread.
func (e *Engine) DeleteConversation(ctx context.Context, conversationID string) error {
	e.mu.Lock()
	removed := e.store.RemoveWhere(func(m *model.Message) bool {
		return ConversationKey(m, e.self.ID) == conversationID
	})
	if len(removed) == 0 {
		e.mu.Unlock()
		metrics.RecordMutation("delete_conversation", "rejected")
		return validationErr("delete-conversation", model.ErrConversationNotFound)
	}
	e.recomputeLocked()
	e.mu.Unlock()

	err := e.client.DeleteConversation(ctx, conversationID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.store.Restore(removed)
		e.recomputeLocked()
		metrics.RecordRollback("delete_conversation")
		metrics.RecordMutation("delete_conversation", "failure")
		return classify("delete-conversation", err)
	}

	e.read.Forget(conversationID)
	if e.active == conversationID {
		e.active = ""
	}
	e.recomputeLocked()

	metrics.RecordMutation("delete_conversation", "success")
	e.publish(ctx, model.EventConversationDeleted, conversationID, "")
	return nil
}
