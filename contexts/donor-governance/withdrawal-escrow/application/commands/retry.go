package commands

import (
	"context"
	"time"

	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
)

// RetryPolicy bounds gateway calls. Every attempt reuses the same
// idempotency key, so a retried call can never move funds twice.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (p RetryPolicy) Do(
	ctx context.Context,
	call func(context.Context) (ports.PaymentResult, error),
) (ports.PaymentResult, int, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := p.InitialBackoff
	if backoff < 0 {
		backoff = 0
	}
	maxBackoff := p.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := call(ctx)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ports.PaymentResult{}, attempt, ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
	return ports.PaymentResult{}, attempts, lastErr
}
