// Package inbox implements the conversation synchronization engine: it
// turns the flat message list delivered by the counseling API into ordered
// peer-scoped threads, tracks read state under explicit-action gating, and
// applies optimistic local mutations reconciled against upstream responses.
package inbox

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/counselhub/inbox-sync/internal/model"
	"github.com/counselhub/inbox-sync/internal/upstream"
	"github.com/counselhub/inbox-sync/pkg/logger"
	"github.com/counselhub/inbox-sync/pkg/metrics"
)

// EventPublisher fans committed mutations out to the rest of the portal.
// Publishing is best effort; a publish failure never fails the mutation.
type EventPublisher interface {
	Publish(ctx context.Context, ev *model.InboxEvent) error
}

// Engine owns the message store for one signed-in session and exposes the
// derived conversation state to the UI. All state lives behind one mutex;
// the lock is released across network awaits and reconciliation afterwards
// is keyed on message and conversation identity, never on call order.
type Engine struct {
	mu sync.Mutex

	self   model.Identity
	vis    Visibility
	client upstream.Client
	events EventPublisher
	logger *logger.Logger

	store  *Store
	convs  []model.Conversation
	active string
	read   *readState

	fetchCancel  context.CancelFunc
	fetchGen     uint64
	markInflight map[string]bool
}

// New creates an engine for the given identity. The store starts empty;
// call Refresh to load it.
func New(self model.Identity, client upstream.Client, events EventPublisher, log *logger.Logger) *Engine {
	return &Engine{
		self:         self,
		vis:          VisibilityFor(self.ID, self.Role),
		client:       client,
		events:       events,
		logger:       log.WithSession(self.ID, string(self.Role)),
		store:        NewStore(),
		read:         newReadState(),
		markInflight: make(map[string]bool),
	}
}

// Conversations returns the derived conversation list in display order.
func (e *Engine) Conversations() []model.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Conversation, len(e.convs))
	copy(out, e.convs)
	return out
}

// Messages returns the ordered messages of one conversation.
func (e *Engine) Messages(conversationID string) ([]model.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	msgs := Thread(e.store.Snapshot(), e.vis, conversationID)
	if len(msgs) == 0 {
		return nil, validationErr("messages", model.ErrConversationNotFound)
	}
	return msgs, nil
}

// Active returns the active conversation id, empty when no thread is
// selected.
func (e *Engine) Active() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// OpenConversation records an explicit open, sets the active thread and
// schedules automatic mark-as-read for any unread messages in it.
func (e *Engine) OpenConversation(ctx context.Context, conversationID string) error {
	e.mu.Lock()
	if !e.hasConversationLocked(conversationID) {
		e.mu.Unlock()
		return validationErr("open", model.ErrConversationNotFound)
	}
	e.read.Open(conversationID)
	e.active = conversationID
	e.mu.Unlock()

	return e.markRead(ctx, conversationID, false)
}

// MarkConversationRead is the explicit user action; it is always allowed
// regardless of opened-set membership.
func (e *Engine) MarkConversationRead(ctx context.Context, conversationID string) error {
	return e.markRead(ctx, conversationID, true)
}

// Close cancels any in-flight fetch. The engine must not be used after.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fetchCancel != nil {
		e.fetchCancel()
		e.fetchCancel = nil
	}
	e.fetchGen++
}

func (e *Engine) hasConversationLocked(conversationID string) bool {
	for i := range e.convs {
		if e.convs[i].ID == conversationID {
			return true
		}
	}
	return false
}

// recomputeLocked rebuilds the derived conversation list from the store.
// Every store mutation goes through this before the lock is released, so
// readers never observe mid-mutation state.
func (e *Engine) recomputeLocked() {
	e.convs = Aggregate(e.store.Snapshot(), e.vis)
	metrics.ConversationsVisible.WithLabelValues(string(e.self.Role)).Set(float64(len(e.convs)))
}

// resolveRecipientLocked determines the counterpart of an outbound message
// from the thread's peer identity. A provisional "peer:" key is resolvable
// even before the thread has any messages on the server.
func (e *Engine) resolveRecipientLocked(conversationID string) (string, model.Role, error) {
	for i := range e.convs {
		if e.convs[i].ID != conversationID {
			continue
		}
		role := e.peerRoleLocked(conversationID)
		if e.convs[i].PeerID != "" {
			return e.convs[i].PeerID, role, nil
		}
		// System-bucket threads have no counterpart to address.
		return "", "", errNoRecipient
	}
	if peer := strings.TrimPrefix(conversationID, "peer:"); peer != conversationID && peer != "" {
		return peer, e.vis.PrimaryPeerRole(), nil
	}
	return "", "", model.ErrConversationNotFound
}

// peerRoleLocked finds the role of the thread's counterpart from any
// peer-authored message, falling back to the module's primary peer role.
func (e *Engine) peerRoleLocked(conversationID string) model.Role {
	for _, m := range e.store.Snapshot() {
		if ConversationKey(&m, e.self.ID) != conversationID {
			continue
		}
		if !m.AuthoredBy(e.self.ID) && e.vis.IsPeer(m.SenderKind) {
			return m.SenderKind
		}
	}
	return e.vis.PrimaryPeerRole()
}

func (e *Engine) publish(ctx context.Context, typ model.EventType, conversationID, messageID string) {
	if e.events == nil {
		return
	}
	ev := &model.InboxEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		UserID:         e.self.ID,
		ConversationID: conversationID,
		MessageID:      messageID,
		Type:           typ,
		CreatedAt:      time.Now(),
	}
	if err := e.events.Publish(ctx, ev); err != nil {
		e.logger.Warn("failed to publish inbox event",
			zap.String("event_type", string(typ)),
			zap.Error(err),
		)
	}
}
