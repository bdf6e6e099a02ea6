package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig configures the NATS-backed bus.
type NATSConfig struct {
	URL           string `json:"url" mapstructure:"url"`
	MaxReconnects int    `json:"max_reconnects" mapstructure:"max_reconnects"`
	// ReconnectWait between reconnect attempts, in seconds.
	ReconnectWait int `json:"reconnect_wait" mapstructure:"reconnect_wait"`
}

// DefaultNATSConfig returns the NATS defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: 10,
		ReconnectWait: 2,
	}
}

// NATSBus implements MessageBus over a NATS connection.
type NATSBus struct {
	conn *nats.Conn
	log  *slog.Logger
}

// NewNATSBus connects to the configured NATS server.
func NewNATSBus(cfg NATSConfig, logger *slog.Logger) (*NATSBus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(time.Duration(cfg.ReconnectWait)*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return &NATSBus{conn: conn, log: logger}, nil
}

// Publish implements MessageBus.
func (b *NATSBus) Publish(ctx context.Context, topic string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", topic, err)
	}
	return nil
}

// Subscribe implements MessageBus.
func (b *NATSBus) Subscribe(topic, group string, handler Handler) (Subscription, error) {
	cb := func(msg *nats.Msg) {
		if err := handler(context.Background(), msg.Data); err != nil {
			b.log.Error("message handler failed", "topic", topic, "error", err)
		}
	}
	var (
		sub *nats.Subscription
		err error
	)
	if group == "" {
		sub, err = b.conn.Subscribe(topic, cb)
	} else {
		sub, err = b.conn.QueueSubscribe(topic, group, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return sub, nil
}

// Close implements MessageBus.
func (b *NATSBus) Close() error {
	b.conn.Close()
	return nil
}

var _ MessageBus = (*NATSBus)(nil)
