// Package bus is the publish/subscribe channel between the durable event log
// and the fan-out dispatcher. Publication is advisory: it happens after the
// event committed, and a failed publish never affects the write path.
package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"stockcast/internal/modules/catalog/domain"
)

// TopicCatalogEvents carries every published catalog notification.
const TopicCatalogEvents = "catalog.events"

// Envelope is the wire form of one notification. It is derived from a stored
// event at publish time and never persisted.
type Envelope struct {
	MessageID string          `json:"messageId"`
	EventID   int64           `json:"eventId"`
	EventType string          `json:"eventType"`
	SellerID  string          `json:"sellerId"`
	ProductID *int64          `json:"productId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt time.Time       `json:"emittedAt"`
}

// Handler consumes one notification. Returned errors are logged by the bus
// and never redelivered.
type Handler func(ctx context.Context, env Envelope) error

// Bus is the pub/sub abstraction. A single process normally holds one
// subscriber per topic; horizontally scaled deployments plug in the broker
// implementation so every process receives the full stream.
type Bus interface {
	Publish(ctx context.Context, topic string, env Envelope) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
}

// EnvelopeFrom derives the published form of a stored event.
func EnvelopeFrom(ev domain.Event, at time.Time) Envelope {
	return Envelope{
		MessageID: uuid.NewString(),
		EventID:   ev.ID,
		EventType: string(ev.Type),
		SellerID:  ev.SellerID,
		ProductID: ev.ProductID,
		Payload:   ev.Payload,
		EmittedAt: at.UTC(),
	}
}
