// Package upstream is the HTTP client for the counseling-portal API. Each
// capability has a single well-known endpoint; retries and backoff for
// idempotent reads live here, never in the sync engine.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/counselhub/inbox-sync/internal/model"
	"github.com/counselhub/inbox-sync/pkg/logger"
)

// Client is the upstream capability surface the sync engine consumes.
type Client interface {
	// FetchMessages returns the full visible message list for the caller.
	FetchMessages(ctx context.Context) ([]model.Message, error)

	// SendMessage persists a new message and returns the canonical record.
	SendMessage(ctx context.Context, req *SendRequest) (*model.Message, error)

	// EditMessage overwrites a message body and returns the canonical record.
	EditMessage(ctx context.Context, id, content string) (*model.Message, error)

	// DeleteMessage removes a single message.
	DeleteMessage(ctx context.Context, id string) error

	// DeleteConversation removes an entire thread.
	DeleteConversation(ctx context.Context, id string) error

	// MarkRead marks the given message ids as read.
	MarkRead(ctx context.Context, ids []string) error
}

// SendRequest is the payload for creating a message. ConversationID is
// empty when the client only holds a provisional grouping key; the server
// responds with the canonical conversation id either way.
type SendRequest struct {
	ClientID       string     `json:"client_id"`
	ConversationID string     `json:"conversation_id,omitempty"`
	RecipientID    string     `json:"recipient_id"`
	RecipientRole  model.Role `json:"recipient_role"`
	Content        string     `json:"content"`
}

// APIError is a non-2xx response from the upstream API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

// Config holds HTTP client configuration.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// HTTPClient implements Client against the counseling-portal REST API.
type HTTPClient struct {
	baseURL    string
	http       *http.Client
	maxRetries int
	userID     string
	userRole   model.Role
	tracer     trace.Tracer
	logger     *logger.Logger
}

// NewHTTPClient creates an unauthenticated client. Use ForIdentity to bind
// it to a session before issuing calls.
func NewHTTPClient(cfg Config, log *logger.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		http:       &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
		tracer:     otel.Tracer("upstream"),
		logger:     log,
	}
}

// ForIdentity returns a copy of the client acting on behalf of a user. The
// portal API trusts this service and keys visibility off these headers.
func (c *HTTPClient) ForIdentity(userID string, role model.Role) *HTTPClient {
	clone := *c
	clone.userID = userID
	clone.userRole = role
	return &clone
}

type messagesEnvelope struct {
	Messages []model.Message `json:"messages"`
}

type markReadRequest struct {
	MessageIDs []string `json:"message_ids"`
}

type editRequest struct {
	Content string `json:"content"`
}

// FetchMessages implements Client.
func (c *HTTPClient) FetchMessages(ctx context.Context) ([]model.Message, error) {
	var env messagesEnvelope
	// The only retried call: a full fetch is idempotent, mutations are not.
	err := c.withRetry(ctx, func() error {
		return c.do(ctx, http.MethodGet, "/v1/messages", nil, &env)
	})
	if err != nil {
		return nil, err
	}
	return env.Messages, nil
}

// SendMessage implements Client.
func (c *HTTPClient) SendMessage(ctx context.Context, req *SendRequest) (*model.Message, error) {
	var msg model.Message
	if err := c.do(ctx, http.MethodPost, "/v1/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessage implements Client.
func (c *HTTPClient) EditMessage(ctx context.Context, id, content string) (*model.Message, error) {
	var msg model.Message
	if err := c.do(ctx, http.MethodPut, "/v1/messages/"+id, &editRequest{Content: content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage implements Client.
func (c *HTTPClient) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/messages/"+id, nil, nil)
}

// DeleteConversation implements Client.
func (c *HTTPClient) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/conversations/"+id, nil, nil)
}

// MarkRead implements Client.
func (c *HTTPClient) MarkRead(ctx context.Context, ids []string) error {
	return c.do(ctx, http.MethodPost, "/v1/messages/read", &markReadRequest{MessageIDs: ids}, nil)
}

func (c *HTTPClient) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= c.maxRetries {
			return err
		}
		// 4xx will not get better on retry.
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode < 500 {
			return err
		}
		backoff := time.Duration(attempt+1) * 250 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	ctx, span := c.tracer.Start(ctx, method+" "+path,
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		))
	defer span.End()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-User-ID", c.userID)
	req.Header.Set("X-User-Role", string(c.userRole))

	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		span.SetStatus(codes.Error, apiErr.Message)
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
