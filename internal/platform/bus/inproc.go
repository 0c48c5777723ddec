package bus

import (
	"context"
	"log/slog"
	"sync"
)

// InProc is the single-process Bus: notifications are fanned out over
// buffered channels, one per subscriber, in publish order. A subscriber that
// cannot keep up has messages dropped rather than stalling the publisher.
type InProc struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Envelope
}

func NewInProc() *InProc {
	return &InProc{subscribers: make(map[string][]chan Envelope)}
}

func (b *InProc) Publish(ctx context.Context, topic string, env Envelope) error {
	b.mu.RLock()
	subs := append([]chan Envelope(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- env:
		default:
			slog.Warn("bus dropping notification for slow subscriber",
				slog.String("topic", topic),
				slog.String("messageId", env.MessageID),
				slog.String("eventType", env.EventType))
		}
	}
	return nil
}

func (b *InProc) Subscribe(ctx context.Context, topic string, handler Handler) error {
	ch := make(chan Envelope, 128)

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.remove(topic, ch)
				return
			case env := <-ch:
				if err := handler(ctx, env); err != nil {
					slog.Warn("bus handler error",
						slog.String("topic", topic),
						slog.String("messageId", env.MessageID),
						slog.Any("error", err))
				}
			}
		}
	}()
	return nil
}

func (b *InProc) remove(topic string, target chan Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[topic]
	for i, sub := range subs {
		if sub == target {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}
