package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
)

func TestRetryPolicyStopsOnSuccess(t *testing.T) {
	calls := 0
	policy := RetryPolicy{Attempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	result, attempts, err := policy.Do(context.Background(), func(context.Context) (ports.PaymentResult, error) {
		calls++
		if calls < 3 {
			return ports.PaymentResult{}, errors.New("gateway timeout")
		}
		return ports.PaymentResult{TransactionID: "tx-1", Status: ports.PaymentStatusSucceeded}, nil
	})
	if err != nil || attempts != 3 || result.TransactionID != "tx-1" {
		t.Fatalf("unexpected outcome: result=%+v attempts=%d err=%v", result, attempts, err)
	}
}

func TestRetryPolicyReturnsLastError(t *testing.T) {
	boom := errors.New("connection refused")
	_, attempts, err := RetryPolicy{}.Do(context.Background(), func(context.Context) (ports.PaymentResult, error) {
		return ports.PaymentResult{}, boom
	})
	if !errors.Is(err, boom) || attempts != 3 {
		t.Fatalf("expected default of three attempts ending in %v, got attempts=%d err=%v", boom, attempts, err)
	}
}

func TestRetryPolicyHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{Attempts: 4, InitialBackoff: time.Hour}
	_, attempts, err := policy.Do(ctx, func(context.Context) (ports.PaymentResult, error) {
		cancel()
		return ports.PaymentResult{}, errors.New("unavailable")
	})
	if !errors.Is(err, context.Canceled) || attempts != 1 {
		t.Fatalf("expected cancellation after first attempt, got attempts=%d err=%v", attempts, err)
	}
}
