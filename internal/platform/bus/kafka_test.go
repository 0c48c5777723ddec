package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type readResult struct {
	msg kafka.Message
	err error
}

// scriptedReader replays results pushed by the test; an exhausted script
// blocks until cancellation, like a quiet broker connection.
type scriptedReader struct {
	results chan readResult
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case res := <-r.results:
		return res.msg, res.err
	}
}

func (r *scriptedReader) Close() error { return nil }

func envelopeMessage(t *testing.T, eventID int64) kafka.Message {
	t.Helper()
	value, err := json.Marshal(Envelope{MessageID: "m", EventID: eventID, EventType: "ProductCreated", SellerID: "s1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Topic: TopicCatalogEvents, Value: value}
}

func TestKafkaSubscribeReconnectsAfterReadFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k := NewKafka([]string{"broker:9092"}, "group")
	k.backoff = time.Millisecond

	results := make(chan readResult, 8)
	var mu sync.Mutex
	readers := 0
	k.newReader = func(topic string) messageReader {
		if topic != TopicCatalogEvents {
			t.Errorf("unexpected topic %q", topic)
		}
		mu.Lock()
		readers++
		mu.Unlock()
		return &scriptedReader{results: results}
	}

	var handled []int64
	handler := func(ctx context.Context, env Envelope) error {
		mu.Lock()
		handled = append(handled, env.EventID)
		mu.Unlock()
		return nil
	}
	if err := k.Subscribe(ctx, TopicCatalogEvents, handler); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// One good message, one undecodable, then a dropped connection followed
	// by a message only a fresh reader can deliver.
	results <- readResult{msg: envelopeMessage(t, 1)}
	results <- readResult{msg: kafka.Message{Topic: TopicCatalogEvents, Value: []byte("{broken")}}
	results <- readResult{err: errors.New("connection reset")}
	results <- readResult{msg: envelopeMessage(t, 2)}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(handled)
		mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(handled) != 2 || handled[0] != 1 || handled[1] != 2 {
		t.Fatalf("handled = %v", handled)
	}
	if readers < 2 {
		t.Fatalf("expected a reconnect, readers = %d", readers)
	}
}

func TestKafkaSubscribeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	k := NewKafka([]string{"broker:9092"}, "group")
	k.backoff = time.Millisecond

	var mu sync.Mutex
	readers := 0
	k.newReader = func(topic string) messageReader {
		mu.Lock()
		readers++
		mu.Unlock()
		return &scriptedReader{results: make(chan readResult)}
	}

	handler := func(ctx context.Context, env Envelope) error { return nil }
	if err := k.Subscribe(ctx, TopicCatalogEvents, handler); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := readers
		mu.Unlock()
		if n >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	after := readers
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if readers != after {
		t.Fatalf("consumer kept reconnecting after cancel: %d then %d", after, readers)
	}
}
