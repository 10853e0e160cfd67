package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "fundgate/contexts/donor-governance/withdrawal-escrow/application"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
)

// OutboxRelay publishes persisted escrow events to the broker.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce walks a batch of pending rows in creation order. Rows are keyed by
// campaign: once a campaign's row fails, its later rows wait for the next
// cycle so subscribers never see a campaign's events out of order. Other
// campaigns keep draining.
func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("escrow outbox list failed",
			"event", "escrow_outbox_list_failed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var (
		blocked   = make(map[string]struct{})
		failures  []error
		published int
	)
	for _, row := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stream := row.PartitionKey
		if stream == "" {
			stream = row.OutboxID
		}
		if _, held := blocked[stream]; held {
			continue
		}
		if err := r.relay(ctx, row); err != nil {
			blocked[stream] = struct{}{}
			failures = append(failures, fmt.Errorf("outbox %s: %w", row.OutboxID, err))
			logger.Error("escrow outbox publish failed",
				"event", "escrow_outbox_publish_failed",
				"module", "donor-governance/withdrawal-escrow",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_type", row.EventType,
				"partition_key", row.PartitionKey,
				"error", err.Error(),
			)
			continue
		}
		published++
	}

	logger.Info("escrow outbox relay cycle completed",
		"event", "escrow_outbox_relay_completed",
		"module", "donor-governance/withdrawal-escrow",
		"layer", "worker",
		"published_count", published,
		"held_streams", len(blocked),
	)
	return errors.Join(failures...)
}

func (r OutboxRelay) relay(ctx context.Context, row ports.OutboxMessage) error {
	var event ports.EventEnvelope
	if err := json.Unmarshal(row.Payload, &event); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	topic := event.EventType
	if topic == "" {
		topic = row.EventType
	}
	if err := r.Publisher.Publish(ctx, topic, event); err != nil {
		return err
	}
	if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, r.now()); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

func (r OutboxRelay) now() time.Time {
	if r.Clock != nil {
		return r.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
