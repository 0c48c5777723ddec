package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidEvent rejects appends carrying an unknown event type.
var ErrInvalidEvent = errors.New("invalid event type")

// EventType names the catalog occurrences recorded in the event log.
type EventType string

const (
	EventProductCreated  EventType = "ProductCreated"
	EventProductUpdated  EventType = "ProductUpdated"
	EventProductDeleted  EventType = "ProductDeleted"
	EventLowStockWarning EventType = "LowStockWarning"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventProductCreated, EventProductUpdated, EventProductDeleted, EventLowStockWarning:
		return true
	}
	return false
}

// Event is an immutable, durably stored fact about the catalog. The id is
// assigned at insert time and defines the total order within the log.
type Event struct {
	ID        int64           `json:"id"`
	Type      EventType       `json:"type"`
	SellerID  string          `json:"sellerId"`
	ProductID *int64          `json:"productId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ProductPayload serializes the product fields carried by lifecycle events.
func ProductPayload(p Product) json.RawMessage {
	raw, err := json.Marshal(p)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

// DeletedPayload serializes the tombstone body for ProductDeleted events.
// The events table column stays null so the row survives the product cascade,
// which is why the product id travels in the payload instead.
func DeletedPayload(productID int64, sellerID string) json.RawMessage {
	raw, err := json.Marshal(map[string]any{
		"id":       productID,
		"sellerId": sellerID,
	})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

// LowStockPayload serializes the product snapshot carried by LowStockWarning
// events; the dispatcher reshapes these keys into the nested product document
// pushed to subscribers.
func LowStockPayload(p Product, threshold int) json.RawMessage {
	raw, err := json.Marshal(map[string]any{
		"id":        p.ID,
		"name":      p.Name,
		"price":     p.Price,
		"quantity":  p.Quantity,
		"category":  p.Category,
		"threshold": threshold,
	})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

// SameOccurrence reports whether two events describe the same type of change
// to the same product, the identity used by publish-time duplicate
// suppression. Tombstone events carry no product column, so their identity
// falls back to the product id embedded in the payload.
func SameOccurrence(a, b Event) bool {
	if a.Type != b.Type {
		return false
	}
	if a.ProductID != nil && b.ProductID != nil {
		return *a.ProductID == *b.ProductID
	}
	if a.ProductID == nil && b.ProductID == nil {
		return payloadProductID(a) == payloadProductID(b)
	}
	return false
}

func payloadProductID(ev Event) int64 {
	var body struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(ev.Payload, &body); err != nil {
		return 0
	}
	return body.ID
}

// WithinWindow reports whether candidate was created inside the suppression
// window ending at ref's creation time. Only candidates ordered before ref
// count, with ids breaking creation-time ties, so two events can never
// suppress each other.
func WithinWindow(ref, candidate Event, window time.Duration) bool {
	if candidate.ID == ref.ID {
		return false
	}
	delta := ref.CreatedAt.Sub(candidate.CreatedAt)
	if delta < 0 || delta > window {
		return false
	}
	if delta == 0 && candidate.ID > ref.ID {
		return false
	}
	return true
}
