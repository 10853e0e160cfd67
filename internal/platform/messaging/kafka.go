package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"fundgate/internal/shared/events"

	"github.com/segmentio/kafka-go"
)

// Broker publishes envelopes to Kafka and runs one consumer-group reader per
// subscription. A message is retried in place up to handlerAttempts times
// before its offset is committed.
type Broker struct {
	brokers     []string
	topicPrefix string
	writer      *kafka.Writer
	logger      *slog.Logger

	mu      sync.Mutex
	readers []*kafka.Reader
	wg      sync.WaitGroup
}

const handlerAttempts = 3

var retryStep = 200 * time.Millisecond

func NewBroker(brokers []string, topicPrefix string, logger *slog.Logger) (*Broker, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka broker requires at least one broker")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		brokers:     brokers,
		topicPrefix: topicPrefix,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}, nil
}

func (b *Broker) topic(name string) string {
	return b.topicPrefix + name
}

func (b *Broker) Publish(ctx context.Context, topic string, event events.Envelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	key := event.PartitionKey
	if key == "" {
		key = event.EventID
	}
	if err := b.writer.WriteMessages(ctx, kafka.Message{
		Topic: b.topic(topic),
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	b.logger.Debug("event published",
		"event", "kafka_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", b.topic(topic),
		"event_id", event.EventID,
		"event_type", event.EventType,
	)
	return nil
}

func (b *Broker) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
) error {
	if consumerGroup == "" {
		return fmt.Errorf("kafka consumer requires group id")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.brokers,
		GroupID:  consumerGroup,
		Topic:    b.topic(topic),
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})

	b.mu.Lock()
	b.readers = append(b.readers, reader)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(ctx, reader, consumerGroup, handler)
	}()
	return nil
}

func (b *Broker) consume(
	ctx context.Context,
	reader *kafka.Reader,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
) {
	topic := reader.Config().Topic
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			b.logger.Error("kafka fetch failed",
				"event", "kafka_fetch_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"consumer_group", consumerGroup,
				"error", err.Error(),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var event events.Envelope
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			b.logger.Warn("skipping undecodable kafka message",
				"event", "kafka_decode_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"offset", msg.Offset,
				"error", err.Error(),
			)
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		if err := deliver(ctx, event, handler); err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("consumer handler failed",
				"event", "kafka_consume_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"consumer_group", consumerGroup,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			b.logger.Warn("kafka commit failed",
				"event", "kafka_commit_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"offset", msg.Offset,
				"error", err.Error(),
			)
		}
	}
}

// Close stops every reader and flushes the writer.
func (b *Broker) Close() error {
	b.mu.Lock()
	readers := b.readers
	b.readers = nil
	b.mu.Unlock()

	var errs []error
	for _, reader := range readers {
		if err := reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.wg.Wait()
	if err := b.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
