package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageReader is the consumer side of one topic connection. The indirection
// lets the reconnect loop run against a scripted reader in tests.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Kafka is the broker-backed Bus for deployments running more than one
// process. Each process subscribes with its own group id so every instance
// receives the full stream and fans out to its local subscriptions only.
type Kafka struct {
	brokers []string
	groupID string
	backoff time.Duration

	writer    *kafka.Writer
	newReader func(topic string) messageReader
}

func NewKafka(brokers []string, groupID string) *Kafka {
	k := &Kafka{
		brokers: brokers,
		groupID: groupID,
		backoff: 3 * time.Second,
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
	}
	k.newReader = func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers: k.brokers,
			GroupID: k.groupID,
			Topic:   topic,
		})
	}
	return k
}

func (k *Kafka) Publish(ctx context.Context, topic string, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(env.SellerID),
		Value: value,
	})
}

// Subscribe consumes the topic until ctx is cancelled. Read failures tear the
// reader down and re-establish it after a fixed backoff; messages produced
// while the reader is down are picked up from the committed offset, but this
// bus makes no replay promise to the dispatcher beyond what the broker keeps.
func (k *Kafka) Subscribe(ctx context.Context, topic string, handler Handler) error {
	go func() {
		for {
			if err := k.consume(ctx, topic, handler); err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return
				}
				slog.Warn("kafka consumer restarting",
					slog.String("topic", topic),
					slog.Duration("backoff", k.backoff),
					slog.Any("error", err))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(k.backoff):
			}
		}
	}()
	return nil
}

func (k *Kafka) consume(ctx context.Context, topic string, handler Handler) error {
	reader := k.newReader(topic)
	defer reader.Close()

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			return err
		}
		var env Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			slog.Warn("kafka message decode error",
				slog.String("topic", m.Topic),
				slog.Int64("offset", m.Offset),
				slog.Any("error", err))
			continue
		}
		if err := handler(ctx, env); err != nil {
			slog.Warn("kafka handler error",
				slog.String("topic", m.Topic),
				slog.String("messageId", env.MessageID),
				slog.Any("error", err))
		}
	}
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
