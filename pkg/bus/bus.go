package bus

import "context"

// Handler consumes one message payload. A non-nil error leaves delivery
// semantics to the implementation; handlers should be idempotent.
type Handler func(ctx context.Context, data []byte) error

// MessageBus is the transport used to fan requests out to stateless workers.
// Delivery is at-least-once and ordering is not guaranteed.
type MessageBus interface {
	// Publish sends data on topic.
	Publish(ctx context.Context, topic string, data []byte) error

	// Subscribe registers handler for topic with queue-group semantics:
	// each message goes to one subscriber of the group.
	Subscribe(topic, group string, handler Handler) (Subscription, error)

	// Close tears the connection down.
	Close() error
}

// Subscription is an active topic subscription.
type Subscription interface {
	// Unsubscribe stops delivery.
	Unsubscribe() error
}
