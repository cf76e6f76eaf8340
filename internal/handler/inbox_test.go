package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counselhub/inbox-sync/internal/inbox"
	"github.com/counselhub/inbox-sync/internal/middleware"
	"github.com/counselhub/inbox-sync/internal/model"
	"github.com/counselhub/inbox-sync/internal/session"
	"github.com/counselhub/inbox-sync/internal/upstream"
	"github.com/counselhub/inbox-sync/pkg/logger"
)

const testSecret = "handler-test-secret"

// stubUpstream serves a fixed message list and accepts mutations.
type stubUpstream struct {
	messages []model.Message
}

func (s *stubUpstream) FetchMessages(ctx context.Context) ([]model.Message, error) {
	return append([]model.Message(nil), s.messages...), nil
}

func (s *stubUpstream) SendMessage(ctx context.Context, req *upstream.SendRequest) (*model.Message, error) {
	return &model.Message{
		ID:             "srv-" + req.ClientID,
		ClientID:       req.ClientID,
		ConversationID: "c-1",
		SenderKind:     model.RoleStudent,
		SenderID:       "u1",
		RecipientID:    req.RecipientID,
		RecipientRole:  req.RecipientRole,
		Content:        req.Content,
		CreatedAt:      time.Now(),
	}, nil
}

func (s *stubUpstream) EditMessage(ctx context.Context, id, content string) (*model.Message, error) {
	now := time.Now()
	return &model.Message{ID: id, Content: content, EditedAt: &now}, nil
}

func (s *stubUpstream) DeleteMessage(ctx context.Context, id string) error       { return nil }
func (s *stubUpstream) DeleteConversation(ctx context.Context, id string) error { return nil }
func (s *stubUpstream) MarkRead(ctx context.Context, ids []string) error        { return nil }

func newTestRouter(t *testing.T, stub *stubUpstream) http.Handler {
	t.Helper()
	log := logger.NewNop()

	sessions := session.NewManager(func(id model.Identity) *inbox.Engine {
		return inbox.New(id, stub, nil, log)
	}, time.Hour, log)
	t.Cleanup(sessions.Close)

	h := NewInboxHandler(sessions, log)

	r := chi.NewRouter()
	r.Route("/api/v1/inbox", func(r chi.Router) {
		r.Use(middleware.Auth(testSecret))
		r.Post("/refresh", h.Refresh)
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.ListConversations)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/messages", h.ListMessages)
				r.Post("/messages", h.Send)
				r.Post("/open", h.Open)
				r.Post("/read", h.MarkRead)
				r.Delete("/", h.DeleteConversation)
			})
		})
		r.Route("/messages", func(r chi.Router) {
			r.Put("/{id}", h.Edit)
			r.Delete("/{id}", h.DeleteMessage)
		})
	})
	return r
}

func bearerToken(t *testing.T, subject, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role:        role,
		DisplayName: "Uma",
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doRequest(t *testing.T, router http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seedMessages() []model.Message {
	return []model.Message{
		{
			ID: "m1", ConversationID: "c-1",
			SenderKind: model.RoleCounselor, SenderID: "co-1", SenderName: "Cora",
			RecipientID: "u1", RecipientRole: model.RoleStudent,
			Content: "hello", CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			IsUnread: true,
		},
	}
}

func TestListConversationsRequiresAuth(t *testing.T) {
	router := newTestRouter(t, &stubUpstream{messages: seedMessages()})
	rec := doRequest(t, router, http.MethodGet, "/api/v1/inbox/conversations/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListConversations(t *testing.T) {
	router := newTestRouter(t, &stubUpstream{messages: seedMessages()})
	auth := bearerToken(t, "u1", "student")

	rec := doRequest(t, router, http.MethodGet, "/api/v1/inbox/conversations/", auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ListConversationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "c-1", resp.Conversations[0].ID)
	assert.Equal(t, 1, resp.Conversations[0].UnreadCount)
	assert.Equal(t, "hello", resp.Conversations[0].LastMessage)
}

func TestListMessagesUnknownConversation(t *testing.T) {
	router := newTestRouter(t, &stubUpstream{messages: seedMessages()})
	auth := bearerToken(t, "u1", "student")

	rec := doRequest(t, router, http.MethodGet, "/api/v1/inbox/conversations/nope/messages", auth, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenThenListShowsRead(t *testing.T) {
	router := newTestRouter(t, &stubUpstream{messages: seedMessages()})
	auth := bearerToken(t, "u1", "student")

	rec := doRequest(t, router, http.MethodPost, "/api/v1/inbox/conversations/c-1/open", auth, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/inbox/conversations/", auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ListConversationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, 0, resp.Conversations[0].UnreadCount)
	assert.Equal(t, "c-1", resp.ActiveID)
}

func TestSendMessage(t *testing.T) {
	router := newTestRouter(t, &stubUpstream{messages: seedMessages()})
	auth := bearerToken(t, "u1", "student")

	rec := doRequest(t, router, http.MethodPost, "/api/v1/inbox/conversations/c-1/messages", auth,
		model.SendMessageRequest{Content: "thanks for the help"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var msg model.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, "thanks for the help", msg.Content)
	assert.Equal(t, "c-1", msg.ConversationID)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/inbox/conversations/c-1/messages", auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list model.ListMessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)
}

func TestSendEmptyContentRejected(t *testing.T) {
	router := newTestRouter(t, &stubUpstream{messages: seedMessages()})
	auth := bearerToken(t, "u1", "student")

	rec := doRequest(t, router, http.MethodPost, "/api/v1/inbox/conversations/c-1/messages", auth,
		model.SendMessageRequest{Content: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteConversation(t *testing.T) {
	router := newTestRouter(t, &stubUpstream{messages: seedMessages()})
	auth := bearerToken(t, "u1", "student")

	rec := doRequest(t, router, http.MethodDelete, "/api/v1/inbox/conversations/c-1/", auth, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/inbox/conversations/", auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.ListConversationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Total)
}

func TestRefreshReturnsConversations(t *testing.T) {
	stub := &stubUpstream{messages: seedMessages()}
	router := newTestRouter(t, stub)
	auth := bearerToken(t, "u1", "student")

	rec := doRequest(t, router, http.MethodPost, "/api/v1/inbox/refresh", auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ListConversationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
}
