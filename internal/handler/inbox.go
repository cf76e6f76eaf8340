// Package handler provides HTTP handlers for the inbox service.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/counselhub/inbox-sync/internal/middleware"
	"github.com/counselhub/inbox-sync/internal/model"
	"github.com/counselhub/inbox-sync/internal/session"
	"github.com/counselhub/inbox-sync/pkg/logger"
)

// InboxHandler exposes the sync engine operations to the portal UI.
type InboxHandler struct {
	sessions *session.Manager
	logger   *logger.Logger
}

// NewInboxHandler creates a new inbox handler.
func NewInboxHandler(sessions *session.Manager, log *logger.Logger) *InboxHandler {
	return &InboxHandler{
		sessions: sessions,
		logger:   log,
	}
}

// ListConversations handles GET /api/v1/inbox/conversations
func (h *InboxHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, err := h.sessions.Engine(ctx, middleware.GetIdentity(ctx))
	if err != nil {
		h.logger.Error("failed to build session engine", zap.Error(err))
		writeEngineError(w, err)
		return
	}

	convs := eng.Conversations()
	writeJSON(w, http.StatusOK, model.ListConversationsResponse{
		Conversations: convs,
		Total:         len(convs),
		ActiveID:      eng.Active(),
	})
}

// ListMessages handles GET /api/v1/inbox/conversations/{id}/messages
func (h *InboxHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eng, err := h.sessions.Engine(ctx, middleware.GetIdentity(ctx))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	msgs, err := eng.Messages(conversationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, model.ListMessagesResponse{
		Messages: msgs,
		Total:    len(msgs),
	})
}

// Open handles POST /api/v1/inbox/conversations/{id}/open
func (h *InboxHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eng, err := h.sessions.Engine(ctx, middleware.GetIdentity(ctx))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := eng.OpenConversation(ctx, conversationID); err != nil {
		writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Send handles POST /api/v1/inbox/conversations/{id}/messages
func (h *InboxHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eng, err := h.sessions.Engine(ctx, middleware.GetIdentity(ctx))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	msg, err := eng.SendMessage(ctx, conversationID, req.Content)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// Edit handles PUT /api/v1/inbox/messages/{id}
func (h *InboxHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	messageID := chi.URLParam(r, "id")

	if err := middleware.ValidateMessageID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eng, err := h.sessions.Engine(ctx, middleware.GetIdentity(ctx))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	msg, err := eng.EditMessage(ctx, messageID, req.Content)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

// DeleteMessage handles DELETE /api/v1/inbox/messages/{id}
func (h *InboxHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	messageID := chi.URLParam(r, "id")

	if err := middleware.ValidateMessageID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eng, err := h.sessions.Engine(ctx, middleware.GetIdentity(ctx))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := eng.DeleteMessage(ctx, messageID); err != nil {
		writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteConversation handles DELETE /api/v1/inbox/conversations/{id}
func (h *InboxHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eng, err := h.sessions.Engine(ctx, middleware.GetIdentity(ctx))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := eng.DeleteConversation(ctx, conversationID); err != nil {
		writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkRead handles POST /api/v1/inbox/conversations/{id}/read
func (h *InboxHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eng, err := h.sessions.Engine(ctx, middleware.GetIdentity(ctx))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := eng.MarkConversationRead(ctx, conversationID); err != nil {
		writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /api/v1/inbox/refresh
func (h *InboxHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eng, err := h.sessions.Engine(ctx, middleware.GetIdentity(ctx))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := eng.Refresh(ctx); err != nil {
		writeEngineError(w, err)
		return
	}

	convs := eng.Conversations()
	writeJSON(w, http.StatusOK, model.ListConversationsResponse{
		Conversations: convs,
		Total:         len(convs),
		ActiveID:      eng.Active(),
	})
}
