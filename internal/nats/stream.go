package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/shopstream/storefront-platform/internal/model"
	"github.com/shopstream/storefront-platform/pkg/metrics"
)

const (
	// StreamName is the name of the chat events stream.
	StreamName = "CHAT_EVENTS"

	// SubjectPrefix is the prefix for all chat event subjects.
	SubjectPrefix = "chat.msg"
)

// StreamManager handles the chat event stream: durable publishes over
// JetStream plus realtime fan-out to core subscribers. Delivery to
// subscribers is at-least-once and unordered relative to store reads, which
// is why consumers merge by message id.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the chat events stream exists.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Buyer/seller chat message events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for a conversation's events.
func EventSubject(conversationID string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, conversationID)
}

// PublishEvent publishes a chat event for its conversation.
func (m *StreamManager) PublishEvent(ctx context.Context, ev *model.ChatEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal chat event: %w", err)
	}

	_, err = m.client.JetStream().Publish(ctx, EventSubject(ev.Message.ConversationID), data)
	if err != nil {
		return fmt.Errorf("failed to publish chat event: %w", err)
	}

	return nil
}

// Subscribe delivers every chat event to the handler until the returned
// subscription is unsubscribed. Malformed payloads are logged and skipped.
func (m *StreamManager) Subscribe(handler func(model.ChatEvent)) (*nats.Subscription, error) {
	sub, err := m.client.Conn().Subscribe(fmt.Sprintf("%s.>", SubjectPrefix), func(msg *nats.Msg) {
		var ev model.ChatEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			m.client.logger.Warn("dropping malformed chat event",
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			return
		}
		handler(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to chat events: %w", err)
	}
	return sub, nil
}

// ReportStreamMetrics samples stream depth into the metrics gauges.
func (m *StreamManager) ReportStreamMetrics(ctx context.Context) {
	stream, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return
	}
	metrics.NATSStreamMessages.WithLabelValues(StreamName).Set(float64(info.State.Msgs))
}
