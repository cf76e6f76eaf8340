package inbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/counselhub/inbox-sync/internal/model"
	"github.com/counselhub/inbox-sync/pkg/metrics"
)

// Refresh fetches the full message list and replaces the store wholesale.
// At most one fetch is outstanding: starting a new one cancels the old, and
// a superseded fetch never mutates the store. If the active conversation
// disappears from the refreshed list the active pointer is cleared rather
// than guessing a replacement.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.fetchCancel != nil {
		e.fetchCancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	e.fetchCancel = cancel
	e.fetchGen++
	gen := e.fetchGen
	e.mu.Unlock()

	start := time.Now()
	fetched, err := e.client.FetchMessages(fetchCtx)
	cancel()

	e.mu.Lock()
	if gen != e.fetchGen {
		// A newer fetch (or teardown) replaced this one; discard the result.
		e.mu.Unlock()
		metrics.RecordFetch("superseded", time.Since(start).Seconds())
		return ErrSuperseded
	}
	e.fetchCancel = nil

	if err != nil {
		e.mu.Unlock()
		metrics.RecordFetch("failure", time.Since(start).Seconds())
		return classify("fetch", err)
	}

	visible := e.vis.Apply(RepairRecords(fetched))
	e.applyRefreshLocked(visible)

	active := e.active
	opened := active != "" && e.read.Opened(active)
	hasUnread := opened && e.unreadIDsLocked(active) != nil
	e.mu.Unlock()

	metrics.RecordFetch("success", time.Since(start).Seconds())

	// A reply landing in a thread the user has open counts as seen. The
	// opened-set gate above keeps background refreshes from touching
	// threads the user never interacted with.
	if hasUnread {
		if err := e.markRead(ctx, active, false); err != nil {
			e.logger.Warn("auto mark-read after refresh failed",
				zap.String("conversation_id", active),
				zap.Error(err),
			)
		}
	}
	return nil
}

// applyRefreshLocked installs a refreshed visible message list, preserving
// read monotonicity: a flag this client already cleared never comes back.
func (e *Engine) applyRefreshLocked(visible []model.Message) {
	cleared := make(map[string]bool)
	for _, m := range e.store.Snapshot() {
		if !m.IsUnread {
			cleared[m.ID] = true
		}
	}
	for i := range visible {
		if visible[i].IsUnread && cleared[visible[i].ID] {
			visible[i].IsUnread = false
		}
	}
	e.store.Replace(visible)
	e.recomputeLocked()

	if e.active != "" && !e.hasConversationLocked(e.active) {
		e.active = ""
	}
}

// markRead issues at most one upstream mark-as-read per conversation at a
// time; concurrent triggers while one is outstanding are coalesced. The
// explicit path bypasses the opened-set gate, the automatic one does not.
func (e *Engine) markRead(ctx context.Context, conversationID string, explicit bool) error {
	e.mu.Lock()
	if !explicit && !e.read.Opened(conversationID) {
		e.mu.Unlock()
		return nil
	}
	ids := e.unreadIDsLocked(conversationID)
	if len(ids) == 0 {
		e.mu.Unlock()
		return nil
	}
	if e.markInflight[conversationID] {
		e.mu.Unlock()
		metrics.MarkReadDedupTotal.Inc()
		return nil
	}
	e.markInflight[conversationID] = true
	e.mu.Unlock()

	err := e.client.MarkRead(ctx, ids)

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.markInflight, conversationID)

	if err != nil {
		return classify("mark-read", err)
	}

	changed := false
	for _, id := range ids {
		if i := e.store.Index(id); i >= 0 {
			m, _ := e.store.Get(id)
			if m.IsUnread {
				m.IsUnread = false
				e.store.Set(i, m)
				changed = true
			}
		}
	}
	if changed {
		e.recomputeLocked()
		e.publish(ctx, model.EventConversationRead, conversationID, "")
	}
	return nil
}

// unreadIDsLocked returns the ids of unread messages in a conversation.
func (e *Engine) unreadIDsLocked(conversationID string) []string {
	var ids []string
	for _, m := range e.store.Snapshot() {
		if m.IsUnread && ConversationKey(&m, e.self.ID) == conversationID {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
