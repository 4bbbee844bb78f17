package messaging

import (
	"context"

	"github.com/nats-io/nats.go"
)

// ClientInterface defines the JetStream operations this service uses.
// Kept as an interface for easy mocking in tests.
type ClientInterface interface {
	// SetupStream ensures the stream exists with the given configuration
	SetupStream(ctx context.Context, streamConfig *nats.StreamConfig) error

	// SetupConsumer ensures the consumer exists on the given stream
	SetupConsumer(ctx context.Context, streamName string, consumerConfig *nats.ConsumerConfig) error

	// SubscribePush creates a push-based queue subscription bound to a stream
	SubscribePush(subject, consumer, group, stream string, handler nats.MsgHandler) (*nats.Subscription, error)

	// Publish publishes a message to a subject with optional headers
	Publish(subject string, data []byte, headers map[string]string) error

	// NatsConn returns the underlying *nats.Conn
	NatsConn() *nats.Conn

	// Close closes the NATS connection
	Close()
}
