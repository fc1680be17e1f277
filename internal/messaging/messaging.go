package messaging

import (
	"context"
	"log/slog"
)

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
	Close() error
}

// Subscriber defines an interface for subscribing to a message topic.
type Subscriber interface {
	// Consume blocks until ctx is cancelled. Handlers reject messages that can never succeed
	// with backoff.Permanent; any other error causes redelivery.
	Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error)
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	slog.Debug("Broker disabled, dropping event", "topic", topic, "key", key)
	return nil
}

func (NopPublisher) Close() error { return nil }
