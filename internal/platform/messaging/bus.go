package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fundgate/internal/shared/events"
)

// Bus is the in-process broker used by single-binary deployments and tests.
// It follows consumer-group semantics: every group subscribed to a topic
// receives each event once, and subscribers sharing a group compete for it.
// Publish blocks while a group queue is full rather than dropping events.
type Bus struct {
	mu     sync.Mutex
	topics map[string]map[string]*busGroup
	logger *slog.Logger
}

type busGroup struct {
	queue   chan events.Envelope
	members int
}

const busQueueSize = 128

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		topics: make(map[string]map[string]*busGroup),
		logger: logger,
	}
}

func (b *Bus) Publish(ctx context.Context, topic string, event events.Envelope) error {
	b.mu.Lock()
	queues := make([]chan events.Envelope, 0, len(b.topics[topic]))
	for _, group := range b.topics[topic] {
		queues = append(queues, group.queue)
	}
	b.mu.Unlock()

	for _, queue := range queues {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case queue <- event:
		}
	}
	b.logger.Debug("event published",
		"event", "bus_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"groups", len(queues),
	)
	return nil
}

func (b *Bus) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
) error {
	queue := b.join(topic, consumerGroup)
	go func() {
		defer b.leave(topic, consumerGroup)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-queue:
				if err := deliver(ctx, event, handler); err != nil && ctx.Err() == nil {
					b.logger.Error("consumer handler failed",
						"event", "bus_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

func (b *Bus) join(topic string, consumerGroup string) chan events.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	groups, ok := b.topics[topic]
	if !ok {
		groups = make(map[string]*busGroup)
		b.topics[topic] = groups
	}
	group, ok := groups[consumerGroup]
	if !ok {
		group = &busGroup{queue: make(chan events.Envelope, busQueueSize)}
		groups[consumerGroup] = group
	}
	group.members++
	return group.queue
}

func (b *Bus) leave(topic string, consumerGroup string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	group, ok := b.topics[topic][consumerGroup]
	if !ok {
		return
	}
	group.members--
	if group.members > 0 {
		return
	}
	delete(b.topics[topic], consumerGroup)
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
}

func (b *Bus) groupCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

// deliver retries a failing handler in place with a linear backoff. Both
// brokers use it so a transient repository error does not lose an event.
func deliver(
	ctx context.Context,
	event events.Envelope,
	handler func(context.Context, events.Envelope) error,
) error {
	var err error
	for attempt := 1; attempt <= handlerAttempts; attempt++ {
		if err = handler(ctx, event); err == nil {
			return nil
		}
		if attempt == handlerAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryStep):
		}
	}
	return err
}
