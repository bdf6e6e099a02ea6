package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/soundprediction/graphrag/pkg/types"
)

// MemoryBus is an in-process MessageBus for tests and single-binary
// deployments. Handlers run on the publisher's goroutine pool; queue groups
// receive each message on exactly one member, chosen round-robin.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memorySub
	next   map[string]map[string]int
	closed bool
	log    *slog.Logger
}

type memorySub struct {
	bus     *MemoryBus
	topic   string
	group   string
	handler Handler
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus(logger *slog.Logger) *MemoryBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBus{
		subs: make(map[string][]*memorySub),
		next: make(map[string]map[string]int),
		log:  logger,
	}
}

// Publish implements MessageBus. Delivery is asynchronous.
func (b *MemoryBus) Publish(ctx context.Context, topic string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("publish on closed bus: %w", types.ErrTransientUpstream)
	}
	var targets []*memorySub
	grouped := make(map[string][]*memorySub)
	for _, sub := range b.subs[topic] {
		if sub.group == "" {
			targets = append(targets, sub)
		} else {
			grouped[sub.group] = append(grouped[sub.group], sub)
		}
	}
	for group, members := range grouped {
		if b.next[topic] == nil {
			b.next[topic] = make(map[string]int)
		}
		idx := b.next[topic][group] % len(members)
		b.next[topic][group]++
		targets = append(targets, members[idx])
	}
	b.mu.Unlock()

	payload := make([]byte, len(data))
	copy(payload, data)
	for _, sub := range targets {
		go func(s *memorySub) {
			if err := s.handler(context.Background(), payload); err != nil {
				b.log.Error("message handler failed", "topic", s.topic, "error", err)
			}
		}(sub)
	}
	return nil
}

// Subscribe implements MessageBus.
func (b *MemoryBus) Subscribe(topic, group string, handler Handler) (Subscription, error) {
	sub := &memorySub{bus: b, topic: topic, group: group, handler: handler}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("subscribe on closed bus: %w", types.ErrTransientUpstream)
	}
	b.subs[topic] = append(b.subs[topic], sub)
	return sub, nil
}

// Close implements MessageBus.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string][]*memorySub)
	b.closed = true
	return nil
}

func (s *memorySub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	subs := s.bus.subs[s.topic]
	for i, candidate := range subs {
		if candidate == s {
			s.bus.subs[s.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return nil
}

var _ MessageBus = (*MemoryBus)(nil)
