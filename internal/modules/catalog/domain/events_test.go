package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func int64Ptr(v int64) *int64 { return &v }

func TestSameOccurrence(t *testing.T) {
	base := Event{ID: 1, Type: EventProductUpdated, ProductID: int64Ptr(42)}

	cases := map[string]struct {
		other Event
		want  bool
	}{
		"same type and product": {Event{ID: 2, Type: EventProductUpdated, ProductID: int64Ptr(42)}, true},
		"different product":     {Event{ID: 2, Type: EventProductUpdated, ProductID: int64Ptr(7)}, false},
		"different type":        {Event{ID: 2, Type: EventProductCreated, ProductID: int64Ptr(42)}, false},
		"nil versus set":        {Event{ID: 2, Type: EventProductUpdated}, false},
	}
	for name, tc := range cases {
		if got := SameOccurrence(base, tc.other); got != tc.want {
			t.Fatalf("%s: SameOccurrence expected %v got %v", name, tc.want, got)
		}
	}
}

func TestSameOccurrenceTombstones(t *testing.T) {
	a := Event{ID: 1, Type: EventProductDeleted, Payload: DeletedPayload(5, "s1")}
	b := Event{ID: 2, Type: EventProductDeleted, Payload: DeletedPayload(5, "s1")}
	c := Event{ID: 3, Type: EventProductDeleted, Payload: DeletedPayload(9, "s1")}

	if !SameOccurrence(a, b) {
		t.Fatalf("tombstones for the same product should match")
	}
	if SameOccurrence(a, c) {
		t.Fatalf("tombstones for different products must not match")
	}
}

func TestWithinWindow(t *testing.T) {
	now := time.Now().UTC()
	ref := Event{ID: 10, CreatedAt: now}

	if !WithinWindow(ref, Event{ID: 9, CreatedAt: now.Add(-2 * time.Second)}, 5*time.Second) {
		t.Fatalf("event 2s earlier should fall inside a 5s window")
	}
	if WithinWindow(ref, Event{ID: 8, CreatedAt: now.Add(-6 * time.Second)}, 5*time.Second) {
		t.Fatalf("event 6s earlier should fall outside a 5s window")
	}
	if WithinWindow(ref, Event{ID: 10, CreatedAt: now}, 5*time.Second) {
		t.Fatalf("the reference row itself must never count")
	}
	if WithinWindow(ref, Event{ID: 11, CreatedAt: now.Add(2 * time.Second)}, 5*time.Second) {
		t.Fatalf("a later event must never count against an earlier one")
	}
}

// Suppression is one-directional: of two events sharing a timestamp, only
// the later id sees the earlier one. If both counted, two concurrent
// mutations would suppress each other and nothing would be delivered.
func TestWithinWindowBreaksTiesByID(t *testing.T) {
	now := time.Now().UTC()
	first := Event{ID: 10, CreatedAt: now}
	second := Event{ID: 11, CreatedAt: now}

	if !WithinWindow(second, first, 5*time.Second) {
		t.Fatalf("the later id should see the earlier event")
	}
	if WithinWindow(first, second, 5*time.Second) {
		t.Fatalf("the earlier id must not see the later event")
	}
}

func TestLowStockPayloadShape(t *testing.T) {
	payload := LowStockPayload(Product{
		ID: 7, SellerID: "s1", Name: "widget", Price: 9.5, Quantity: 3, Category: "home",
	}, 5)

	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if body["id"].(float64) != 7 {
		t.Fatalf("expected id 7 got %v", body["id"])
	}
	if body["quantity"].(float64) != 3 {
		t.Fatalf("expected quantity 3 got %v", body["quantity"])
	}
	if body["threshold"].(float64) != 5 {
		t.Fatalf("expected threshold 5 got %v", body["threshold"])
	}
}

func TestEventTypeValid(t *testing.T) {
	for _, valid := range []EventType{EventProductCreated, EventProductUpdated, EventProductDeleted, EventLowStockWarning} {
		if !valid.Valid() {
			t.Fatalf("%s should be valid", valid)
		}
	}
	if EventType("SomethingElse").Valid() {
		t.Fatalf("unknown type should be invalid")
	}
}
