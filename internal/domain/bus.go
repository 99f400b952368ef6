package domain

import (
	"context"
	"time"
)

// EventBus carries observability events out of the request path.
// Supports Go channels (Community) or NATS (Pro). Publication is
// fire-and-forget; no scoring response ever depends on a subscriber.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the scoring pipeline.
const (
	TopicBatchScored        = "creditx.batch.scored"
	TopicConfigReloaded     = "creditx.config.reloaded"
	TopicConfigReloadFailed = "creditx.config.reload_failed"
)

// BatchScoredEvent is published after every successful scoring or pricing
// batch. Importance is the per-batch reason/adjustment frequency map the
// report worker folds into its running totals.
type BatchScoredEvent struct {
	Endpoint       string     `json:"endpoint"`
	Records        int        `json:"records"`
	WeightsVersion string     `json:"weights_version"`
	Importance     Importance `json:"importance"`
	Timestamp      time.Time  `json:"timestamp"`
}

// ConfigReloadedEvent is published when the weights configuration changes
// generation, or when a reload attempt is rejected.
type ConfigReloadedEvent struct {
	Version   string    `json:"version"`
	Source    string    `json:"source"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
