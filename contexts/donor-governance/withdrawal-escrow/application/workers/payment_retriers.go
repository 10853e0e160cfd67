package workers

import (
	"context"
	"log/slog"
	"time"

	application "fundgate/contexts/donor-governance/withdrawal-escrow/application"
	"fundgate/contexts/donor-governance/withdrawal-escrow/application/commands"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
)

// ReleaseRetrier re-drives approved requests whose transfer failed or was
// never sent. Outstanding transfers are left to the webhook.
type ReleaseRetrier struct {
	Requests      ports.RequestRepository
	Disbursements commands.DisbursementUseCase
	Clock         ports.Clock
	BatchSize     int
	Logger        *slog.Logger
}

func (r ReleaseRetrier) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 50
	}
	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}
	approved, err := r.Requests.ListDueRequests(ctx, entities.RequestStatusAdminApproved, now, limit)
	if err != nil {
		return err
	}
	released := 0
	for _, request := range approved {
		result, err := r.Disbursements.Release(ctx, commands.ReleaseCommand{RequestID: request.RequestID})
		if err != nil {
			logger.Warn("release retry failed",
				"event", "escrow_release_retry_failed",
				"module", "donor-governance/withdrawal-escrow",
				"layer", "worker",
				"request_id", request.RequestID,
				"error", err.Error(),
			)
			continue
		}
		if result.Request.Status == entities.RequestStatusReleased {
			released++
		}
	}
	if released > 0 {
		logger.Info("release retry cycle completed",
			"event", "escrow_release_retry_completed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "worker",
			"released", released,
		)
	}
	return nil
}

// RefundRetrier redispatches failed refund cases one batch at a time.
type RefundRetrier struct {
	Refunds   commands.RefundUseCase
	BatchSize int
	Logger    *slog.Logger
}

func (r RefundRetrier) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 50
	}
	dispatched, failed, err := r.Refunds.RetryFailed(ctx, limit)
	if err != nil {
		logger.Error("refund retry list failed",
			"event", "escrow_refund_retry_list_failed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if dispatched > 0 || failed > 0 {
		logger.Info("refund retry cycle completed",
			"event", "escrow_refund_retry_completed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "worker",
			"dispatched", dispatched,
			"failed", failed,
		)
	}
	return nil
}
