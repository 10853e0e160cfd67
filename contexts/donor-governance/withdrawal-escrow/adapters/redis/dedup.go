package redisadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "escrow:event-dedup:"

// EventDedupStore reserves inbound event ids in Redis with SET NX and a TTL,
// so several worker replicas share one dedup window.
type EventDedupStore struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
	logger    *slog.Logger
}

func NewEventDedupStore(client *redis.Client, keyPrefix string, logger *slog.Logger) *EventDedupStore {
	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = defaultKeyPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventDedupStore{
		client:    client,
		keyPrefix: keyPrefix,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

func (s *EventDedupStore) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	key := s.keyPrefix + strings.TrimSpace(eventID)
	ttl := expiresAt.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}

	reserved, err := s.client.SetNX(ctx, key, strings.TrimSpace(payloadHash), ttl).Result()
	if err != nil {
		return false, s.logError("escrow_redis_reserve_event_failed", err, "event_id", eventID)
	}
	if reserved {
		return false, nil
	}

	existing, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired between SETNX and GET; the next delivery reserves it.
			return false, nil
		}
		return false, s.logError("escrow_redis_load_reserved_event_failed", err, "event_id", eventID)
	}
	if existing != strings.TrimSpace(payloadHash) {
		return false, domainerrors.ErrConflict
	}
	return true, nil
}

func (s *EventDedupStore) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "donor-governance/withdrawal-escrow",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("escrow dedup operation failed", fields...)
	return err
}

var _ ports.EventDedupStore = (*EventDedupStore)(nil)
