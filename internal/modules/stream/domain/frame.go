// Package domain defines the wire frames pushed to live subscribers.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"stockcast/internal/platform/bus"
)

// Reserved frame names that do not correspond to a stored event type.
const (
	FrameConnected = "Connected"
	FramePing      = "ping"
)

// Frame is one named-event unit of the push stream. Encode renders the
// text/event-stream representation; ws clients receive the same fields as a
// JSON object.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode renders the frame as `event: <name>\ndata: <JSON>\n\n`.
func (f Frame) Encode() []byte {
	return []byte("event: " + f.Event + "\ndata: " + string(f.Data) + "\n\n")
}

// ConnectedFrame is the acknowledgement written right after a subscription
// opens.
func ConnectedFrame(sellerID string, at time.Time) Frame {
	data, _ := json.Marshal(map[string]any{
		"type":      FrameConnected,
		"timestamp": at.UTC().Format(time.RFC3339),
		"sellerId":  sellerID,
		"message":   "subscribed to catalog notifications",
	})
	return Frame{Event: FrameConnected, Data: data}
}

// PingFrame is the periodic liveness pulse; the body is a unix-millis number.
func PingFrame(at time.Time) Frame {
	return Frame{Event: FramePing, Data: json.RawMessage(strconv.FormatInt(at.UnixMilli(), 10))}
}

// NotificationFrame formats a bus notification for delivery. LowStockWarning
// payloads are reshaped into a nested product document; every other type is
// passed through annotated with its type and seller.
func NotificationFrame(env bus.Envelope) (Frame, error) {
	if env.EventType == "LowStockWarning" {
		return lowStockFrame(env)
	}

	body := map[string]any{}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &body); err != nil {
			return Frame{}, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
	}
	body["type"] = env.EventType
	body["sellerId"] = env.SellerID

	data, err := json.Marshal(body)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: env.EventType, Data: data}, nil
}

func lowStockFrame(env bus.Envelope) (Frame, error) {
	var product struct {
		ID       int64   `json:"id"`
		Name     string  `json:"name"`
		Price    float64 `json:"price"`
		Quantity int     `json:"quantity"`
		Category string  `json:"category"`
	}
	if err := json.Unmarshal(env.Payload, &product); err != nil {
		return Frame{}, fmt.Errorf("decode low stock payload: %w", err)
	}

	data, err := json.Marshal(map[string]any{
		"type":      env.EventType,
		"timestamp": env.EmittedAt.UTC().Format(time.RFC3339),
		"product": map[string]any{
			"id":       product.ID,
			"name":     product.Name,
			"price":    product.Price,
			"quantity": product.Quantity,
			"category": product.Category,
		},
	})
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: env.EventType, Data: data}, nil
}
