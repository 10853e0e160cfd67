package redisadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*EventDedupStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewEventDedupStore(client, "", nil), server
}

func TestReserveEventDetectsDuplicates(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	expiresAt := time.Now().UTC().Add(time.Hour)

	duplicate, err := store.ReserveEvent(ctx, "evt-1", "hash-a", expiresAt)
	if err != nil {
		t.Fatalf("first reserve returned error: %v", err)
	}
	if duplicate {
		t.Fatalf("expected first delivery to be new")
	}

	duplicate, err = store.ReserveEvent(ctx, "evt-1", "hash-a", expiresAt)
	if err != nil {
		t.Fatalf("second reserve returned error: %v", err)
	}
	if !duplicate {
		t.Fatalf("expected redelivery to be reported as duplicate")
	}
}

func TestReserveEventRejectsPayloadMismatch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	expiresAt := time.Now().UTC().Add(time.Hour)

	if _, err := store.ReserveEvent(ctx, "evt-2", "hash-a", expiresAt); err != nil {
		t.Fatalf("reserve returned error: %v", err)
	}
	_, err := store.ReserveEvent(ctx, "evt-2", "hash-b", expiresAt)
	if !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestReserveEventExpires(t *testing.T) {
	store, server := newTestStore(t)
	ctx := context.Background()

	if _, err := store.ReserveEvent(ctx, "evt-3", "hash-a", time.Now().UTC().Add(time.Minute)); err != nil {
		t.Fatalf("reserve returned error: %v", err)
	}
	if ttl := server.TTL(defaultKeyPrefix + "evt-3"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %s", ttl)
	}
	server.FastForward(2 * time.Minute)

	duplicate, err := store.ReserveEvent(ctx, "evt-3", "hash-b", time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("reserve after expiry returned error: %v", err)
	}
	if duplicate {
		t.Fatalf("expected expired reservation to be reusable")
	}
}
