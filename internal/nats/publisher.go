package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/counselhub/inbox-sync/internal/model"
)

const (
	// StreamName is the name of the inbox events stream.
	StreamName = "INBOX"

	// SubjectPrefix is the prefix for all inbox event subjects.
	SubjectPrefix = "inbox"
)

// Publisher fans committed inbox mutations out to the rest of the portal
// over JetStream. It implements inbox.EventPublisher.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher on an established client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// EnsureStream ensures the inbox events stream exists.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	js := p.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Inbox mutation events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for an inbox event.
func EventSubject(userID, conversationID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, userID, conversationID, eventType)
}

// Publish publishes an inbox event to JetStream.
func (p *Publisher) Publish(ctx context.Context, ev *model.InboxEvent) error {
	subject := EventSubject(ev.UserID, ev.ConversationID, ev.Type)

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.client.JetStream().Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
