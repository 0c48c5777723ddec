package infrastructure

import (
	"context"
	"log/slog"

	"stockcast/internal/modules/stream/domain"
	"stockcast/internal/platform/bus"
)

// Dispatcher is the single process-wide bus listener. Each notification is
// formatted once and fanned out to every local subscription of the matching
// seller; subscribers of other sellers never see it.
type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Start attaches the dispatcher to the bus. It is called once at boot;
// reconnect behaviour on consumer failure belongs to the bus implementation.
func (d *Dispatcher) Start(ctx context.Context, b bus.Bus, topic string) error {
	return b.Subscribe(ctx, topic, d.Handle)
}

// Handle delivers one notification. A write failure marks that subscription
// dead without affecting the rest of the fan-out pass; dead subscriptions are
// unregistered after the pass completes.
func (d *Dispatcher) Handle(ctx context.Context, env bus.Envelope) error {
	frame, err := domain.NotificationFrame(env)
	if err != nil {
		return err
	}

	subs := d.registry.BySeller(env.SellerID)
	if len(subs) == 0 {
		return nil
	}

	var dead []*Subscription
	for _, sub := range subs {
		if err := sub.Send(frame); err != nil {
			slog.Warn("notification delivery failed",
				slog.Int64("subscriptionId", sub.ID()),
				slog.String("sellerId", env.SellerID),
				slog.String("eventType", env.EventType),
				slog.Any("error", err))
			dead = append(dead, sub)
		}
	}
	for _, sub := range dead {
		d.registry.Unregister(sub)
	}

	slog.Debug("notification dispatched",
		slog.String("eventType", env.EventType),
		slog.String("sellerId", env.SellerID),
		slog.Int("delivered", len(subs)-len(dead)),
		slog.Int("failed", len(dead)))
	return nil
}
