package application

import (
	"context"
	"log/slog"
	"time"

	"stockcast/internal/modules/catalog/domain"
	"stockcast/internal/modules/catalog/ports"
	"stockcast/internal/platform/bus"
)

// DedupWindow is the span in which repeated events of the same type and
// product are published at most once. The rows themselves always persist.
const DedupWindow = 5 * time.Second

// Notifier turns committed events into bus notifications. Publication is
// best-effort: it runs after the event is durable and its failures never
// propagate to the write path.
type Notifier struct {
	Store  ports.Repository
	Bus    bus.Bus
	Topic  string
	Window time.Duration
	Clock  ports.Clock
}

func NewNotifier(store ports.Repository, b bus.Bus) *Notifier {
	return &Notifier{
		Store:  store,
		Bus:    b,
		Topic:  bus.TopicCatalogEvents,
		Window: DedupWindow,
		Clock:  ports.SystemClock{},
	}
}

// Announce publishes ev unless another event of the same type and product was
// stored within the suppression window.
func (n *Notifier) Announce(ctx context.Context, ev domain.Event) {
	dup, err := n.Store.HasRecentDuplicate(ctx, ev, n.Window)
	if err != nil {
		// A failed dedup probe falls back to publishing: a rare duplicate
		// frame beats a silently missing one.
		slog.Warn("event dedup check failed",
			slog.Int64("eventId", ev.ID),
			slog.String("type", string(ev.Type)),
			slog.Any("error", err))
	}
	if dup {
		slog.Debug("event publication suppressed",
			slog.Int64("eventId", ev.ID),
			slog.String("type", string(ev.Type)),
			slog.String("sellerId", ev.SellerID))
		return
	}

	env := bus.EnvelopeFrom(ev, n.Clock.Now())
	if err := n.Bus.Publish(ctx, n.Topic, env); err != nil {
		slog.Warn("event publish failed",
			slog.Int64("eventId", ev.ID),
			slog.String("type", string(ev.Type)),
			slog.String("sellerId", ev.SellerID),
			slog.Any("error", err))
	}
}
