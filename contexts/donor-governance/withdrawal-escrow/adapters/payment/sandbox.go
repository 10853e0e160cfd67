package paymentadapter

import (
	"context"
	"errors"
	"strings"
	"sync"

	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"

	"github.com/google/uuid"
)

var errSandboxUnavailable = errors.New("sandbox gateway unavailable")

// SandboxGateway is an in-process gateway used by the in-memory module and
// tests. Succeeded and pending results are remembered per idempotency key,
// so a repeated call returns the first outcome and never moves money twice.
// Declines are not remembered and may be retried after ClearDecline.
type SandboxGateway struct {
	mu sync.Mutex

	// Mode is the outcome for keys without an override. Empty means succeeded.
	Mode ports.PaymentStatus

	declines   map[string]string
	outages    map[string]int
	results    map[string]ports.PaymentResult
	calls      map[string]int
	settledSum int64
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		declines: make(map[string]string),
		outages:  make(map[string]int),
		results:  make(map[string]ports.PaymentResult),
		calls:    make(map[string]int),
	}
}

// Decline makes calls for key fail permanently with reason.
func (g *SandboxGateway) Decline(key string, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declines[strings.TrimSpace(key)] = reason
}

func (g *SandboxGateway) ClearDecline(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.declines, strings.TrimSpace(key))
}

// FailTransiently makes the next n calls for key return an error.
func (g *SandboxGateway) FailTransiently(key string, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outages[strings.TrimSpace(key)] = n
}

// Calls reports how many times key reached the gateway.
func (g *SandboxGateway) Calls(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[strings.TrimSpace(key)]
}

// SettledAmount is the total moved by succeeded calls.
func (g *SandboxGateway) SettledAmount() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settledSum
}

func (g *SandboxGateway) Transfer(_ context.Context, req ports.TransferRequest) (ports.PaymentResult, error) {
	return g.execute(req.IdempotencyKey, req.Amount)
}

func (g *SandboxGateway) Refund(_ context.Context, req ports.RefundRequest) (ports.PaymentResult, error) {
	return g.execute(req.IdempotencyKey, req.Amount)
}

func (g *SandboxGateway) execute(key string, amount int64) (ports.PaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key = strings.TrimSpace(key)
	g.calls[key]++

	if remaining := g.outages[key]; remaining > 0 {
		g.outages[key] = remaining - 1
		return ports.PaymentResult{}, errSandboxUnavailable
	}
	if result, ok := g.results[key]; ok {
		return result, nil
	}

	result := ports.PaymentResult{
		TransactionID: "sbx_" + uuid.NewString(),
		Status:        g.Mode,
	}
	if result.Status == "" {
		result.Status = ports.PaymentStatusSucceeded
	}
	if reason, declined := g.declines[key]; declined {
		result.Status = ports.PaymentStatusFailed
		result.FailureReason = reason
	}
	if result.Status == ports.PaymentStatusFailed {
		return result, nil
	}
	if result.Status == ports.PaymentStatusSucceeded {
		g.settledSum += amount
	}
	g.results[key] = result
	return result, nil
}

var _ ports.PaymentGateway = (*SandboxGateway)(nil)
