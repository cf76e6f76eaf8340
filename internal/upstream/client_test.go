package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counselhub/inbox-sync/internal/model"
	"github.com/counselhub/inbox-sync/pkg/logger"
)

func testClient(t *testing.T, handler http.HandlerFunc, retries int) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewHTTPClient(Config{
		BaseURL:    srv.URL,
		Timeout:    2 * time.Second,
		MaxRetries: retries,
	}, logger.NewNop())
	return c.ForIdentity("u1", model.RoleStudent)
}

func TestFetchMessagesSendsIdentityHeaders(t *testing.T) {
	var gotID, gotRole string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-User-ID")
		gotRole = r.Header.Get("X-User-Role")
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []model.Message{{ID: "m1", Content: "hi"}},
		})
	}, 0)

	msgs, err := c.FetchMessages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "u1", gotID)
	assert.Equal(t, "student", gotRole)
}

func TestFetchMessagesRetriesServerErrors(t *testing.T) {
	var calls int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"messages": []model.Message{}})
	}, 3)

	_, err := c.FetchMessages(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetchMessagesDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "not allowed"})
	}, 3)

	_, err := c.FetchMessages(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "not allowed", apiErr.Message)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSendMessageDoesNotRetry(t *testing.T) {
	var calls int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, 3)

	_, err := c.SendMessage(context.Background(), &SendRequest{
		ClientID:      "tmp-1",
		RecipientID:   "co-1",
		RecipientRole: model.RoleCounselor,
		Content:       "hi",
	})
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSendMessageOmitsEmptyConversationID(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, present := body["conversation_id"]
		assert.False(t, present, "provisional sends must not leak a conversation id")
		json.NewEncoder(w).Encode(model.Message{ID: "srv-1", ConversationID: "c-1"})
	}, 0)

	msg, err := c.SendMessage(context.Background(), &SendRequest{
		ClientID:      "tmp-1",
		RecipientID:   "co-1",
		RecipientRole: model.RoleCounselor,
		Content:       "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "c-1", msg.ConversationID)
}

func TestMarkReadPostsMessageIDs(t *testing.T) {
	var got []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages/read", r.URL.Path)
		var body struct {
			MessageIDs []string `json:"message_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = body.MessageIDs
		w.WriteHeader(http.StatusNoContent)
	}, 0)

	require.NoError(t, c.MarkRead(context.Background(), []string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestAPIErrorFallsBackToStatusText(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, 0)

	err := c.DeleteMessage(context.Background(), "m1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Unauthorized", apiErr.Message)
}

func TestFetchRetryHonorsContextCancel(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.FetchMessages(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
