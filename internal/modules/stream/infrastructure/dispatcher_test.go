package infrastructure

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"stockcast/internal/modules/catalog/application"
	catalogdomain "stockcast/internal/modules/catalog/domain"
	"stockcast/internal/modules/catalog/infrastructure/memory"
	"stockcast/internal/modules/catalog/ports"
	"stockcast/internal/platform/bus"
)

func testEnvelope(sellerID, eventType string, productID int64) bus.Envelope {
	payload, _ := json.Marshal(map[string]any{"id": productID, "name": "lamp"})
	return bus.Envelope{
		MessageID: "m-1",
		EventID:   1,
		EventType: eventType,
		SellerID:  sellerID,
		ProductID: &productID,
		Payload:   payload,
		EmittedAt: time.Now().UTC(),
	}
}

func TestHandleDeliversOnlyToMatchingSeller(t *testing.T) {
	registry := NewRegistry(time.Hour, 2*time.Hour)
	dispatcher := NewDispatcher(registry)

	mine := &fakeTransport{}
	other := &fakeTransport{}
	registry.Register("s1", mine)
	registry.Register("s2", other)

	env := testEnvelope("s1", string(catalogdomain.EventProductCreated), 7)
	if err := dispatcher.Handle(context.Background(), env); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got := len(mine.snapshot()); got != 1 {
		t.Fatalf("expected 1 frame for s1, got %d", got)
	}
	if got := len(other.snapshot()); got != 0 {
		t.Fatalf("s2 must not receive s1 notifications, got %d frames", got)
	}
	frame := mine.snapshot()[0]
	if frame.Event != string(catalogdomain.EventProductCreated) {
		t.Fatalf("unexpected frame event %q", frame.Event)
	}
}

func TestHandlePreservesOrderPerSubscriber(t *testing.T) {
	registry := NewRegistry(time.Hour, 2*time.Hour)
	dispatcher := NewDispatcher(registry)

	transport := &fakeTransport{}
	registry.Register("s1", transport)

	first := testEnvelope("s1", string(catalogdomain.EventProductCreated), 7)
	second := testEnvelope("s1", string(catalogdomain.EventProductUpdated), 7)
	if err := dispatcher.Handle(context.Background(), first); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := dispatcher.Handle(context.Background(), second); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	frames := transport.snapshot()
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Event != string(catalogdomain.EventProductCreated) ||
		frames[1].Event != string(catalogdomain.EventProductUpdated) {
		t.Fatalf("frames out of order: %q then %q", frames[0].Event, frames[1].Event)
	}
}

func TestHandleRetiresDeadSubscriptions(t *testing.T) {
	registry := NewRegistry(time.Hour, 2*time.Hour)
	dispatcher := NewDispatcher(registry)

	healthy := &fakeTransport{}
	broken := &fakeTransport{err: ErrTransportClosed}
	registry.Register("s1", healthy)
	registry.Register("s1", broken)

	env := testEnvelope("s1", string(catalogdomain.EventProductUpdated), 7)
	if err := dispatcher.Handle(context.Background(), env); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got := len(healthy.snapshot()); got != 1 {
		t.Fatalf("healthy subscriber must still be served, got %d frames", got)
	}
	if registry.Len() != 1 {
		t.Fatalf("dead subscription must be unregistered, registry holds %d", registry.Len())
	}
	if !broken.isClosed() {
		t.Fatalf("dead transport must be closed")
	}
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	registry := NewRegistry(time.Hour, 2*time.Hour)
	dispatcher := NewDispatcher(registry)
	registry.Register("s1", &fakeTransport{})

	env := testEnvelope("s1", string(catalogdomain.EventProductCreated), 7)
	env.Payload = json.RawMessage(`{broken`)
	if err := dispatcher.Handle(context.Background(), env); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

// End-to-end over the in-process bus: a mutation on the catalog service
// reaches exactly the local subscribers of that seller.
func TestPipelineFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	eventBus := bus.NewInProc()
	notifier := application.NewNotifier(store, eventBus)
	service := application.NewService(store, notifier, nil)

	registry := NewRegistry(time.Hour, 2*time.Hour)
	dispatcher := NewDispatcher(registry)
	if err := dispatcher.Start(ctx, eventBus, bus.TopicCatalogEvents); err != nil {
		t.Fatalf("Start: %v", err)
	}

	mine := &fakeTransport{}
	other := &fakeTransport{}
	registry.Register("s1", mine)
	registry.Register("s2", other)

	if _, err := service.CreateProduct(ctx, ports.CreateProductInput{
		SellerID: "s1",
		Name:     "desk lamp",
		Category: "home",
		Price:    19.90,
		Quantity: 40,
	}); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	waitFor(t, func() bool { return len(mine.snapshot()) == 1 }, "frame delivered to s1")
	frame := mine.snapshot()[0]
	if frame.Event != string(catalogdomain.EventProductCreated) {
		t.Fatalf("unexpected frame event %q", frame.Event)
	}
	var body map[string]any
	if err := json.Unmarshal(frame.Data, &body); err != nil {
		t.Fatalf("frame body: %v", err)
	}
	if body["type"] != string(catalogdomain.EventProductCreated) {
		t.Fatalf("frame body type = %v", body["type"])
	}
	if body["sellerId"] != "s1" {
		t.Fatalf("frame body sellerId = %v", body["sellerId"])
	}
	if got := len(other.snapshot()); got != 0 {
		t.Fatalf("s2 must stay silent, got %d frames", got)
	}
}

// A low quantity mutation yields the lifecycle frame and then the low stock
// warning, reshaped with the nested product document.
func TestPipelineLowStockFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	eventBus := bus.NewInProc()
	notifier := application.NewNotifier(store, eventBus)
	service := application.NewService(store, notifier, nil)

	registry := NewRegistry(time.Hour, 2*time.Hour)
	dispatcher := NewDispatcher(registry)
	if err := dispatcher.Start(ctx, eventBus, bus.TopicCatalogEvents); err != nil {
		t.Fatalf("Start: %v", err)
	}

	transport := &fakeTransport{}
	registry.Register("s1", transport)

	if _, err := service.CreateProduct(ctx, ports.CreateProductInput{
		SellerID: "s1",
		Name:     "last socks",
		Category: "clothing",
		Price:    4.50,
		Quantity: 2,
	}); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	waitFor(t, func() bool { return len(transport.snapshot()) == 2 }, "both frames delivered")
	frames := transport.snapshot()
	if frames[0].Event != string(catalogdomain.EventProductCreated) {
		t.Fatalf("first frame = %q, want lifecycle event", frames[0].Event)
	}
	if frames[1].Event != string(catalogdomain.EventLowStockWarning) {
		t.Fatalf("second frame = %q, want low stock warning", frames[1].Event)
	}

	var warning struct {
		Type    string `json:"type"`
		Product struct {
			Name     string `json:"name"`
			Quantity int    `json:"quantity"`
		} `json:"product"`
	}
	if err := json.Unmarshal(frames[1].Data, &warning); err != nil {
		t.Fatalf("warning body: %v", err)
	}
	if warning.Type != string(catalogdomain.EventLowStockWarning) {
		t.Fatalf("warning type = %q", warning.Type)
	}
	if warning.Product.Name != "last socks" || warning.Product.Quantity != 2 {
		t.Fatalf("warning product = %+v", warning.Product)
	}
}
