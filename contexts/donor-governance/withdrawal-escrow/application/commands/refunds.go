package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	application "fundgate/contexts/donor-governance/withdrawal-escrow/application"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/services"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"

	"github.com/panjf2000/ants/v2"
	"github.com/shopspring/decimal"
)

// RefundUseCase turns a cancelled campaign's recoverable balance into
// per-donation refund cases and pays the held share back through the
// gateway. Cases succeed or fail individually.
type RefundUseCase struct {
	Refunds   ports.RefundRepository
	Campaigns ports.CampaignLedger
	Donations ports.DonationLedger
	Gateway   ports.PaymentGateway
	Retry     RetryPolicy
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	PoolSize  int
	Logger    *slog.Logger
}

// RefundSummary totals one refund run for a cancelled campaign.
type RefundSummary struct {
	CampaignID  string
	Recoverable int64
	Allocated   int64
	Ratio       decimal.Decimal
	Cases       []entities.RefundCase
	Dispatched  int
	Failed      int
}

// RefundConfirmation is the gateway's verdict on a pending refund case.
type RefundConfirmation struct {
	IdempotencyKey string
	TransactionID  string
	Succeeded      bool
	FailureReason  string
}

// IssueRefunds computes the refund plan once per campaign and dispatches
// every case still owed a gateway call. Later calls only redispatch.
func (uc RefundUseCase) IssueRefunds(ctx context.Context, campaignID string) (RefundSummary, error) {
	logger := application.ResolveLogger(uc.Logger)
	campaignID = strings.TrimSpace(campaignID)
	campaign, err := uc.Campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return RefundSummary{}, err
	}
	if campaign.Status != entities.CampaignStatusCancelled {
		return RefundSummary{}, domainerrors.ErrIllegalTransition
	}

	cases, err := uc.Refunds.ListRefundCasesByCampaign(ctx, campaignID)
	if err != nil {
		return RefundSummary{}, err
	}
	summary := RefundSummary{CampaignID: campaignID, Recoverable: campaign.CurrentAmount}
	if len(cases) == 0 {
		plan, err := uc.plan(ctx, campaign)
		if err != nil {
			return RefundSummary{}, err
		}
		cases, err = uc.Refunds.ListRefundCasesByCampaign(ctx, campaignID)
		if err != nil {
			return RefundSummary{}, err
		}
		logger.Info("refund plan created",
			"event", "escrow_refund_plan_created",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "application",
			"campaign_id", campaignID,
			"recoverable", plan.Recoverable,
			"base", plan.Base,
			"allocated", plan.Allocated,
			"ratio", plan.Ratio.String(),
			"cases", len(cases),
		)
	}

	pending := make([]entities.RefundCase, 0, len(cases))
	for _, item := range cases {
		if item.Method == entities.RefundMethodEscrow {
			summary.Allocated += item.RefundedAmount
			summary.Ratio = item.RefundRatio
		}
		if item.Dispatchable() {
			pending = append(pending, item)
		}
	}
	summary.Dispatched, summary.Failed = uc.DispatchRefunds(ctx, pending)

	summary.Cases, err = uc.Refunds.ListRefundCasesByCampaign(ctx, campaignID)
	if err != nil {
		return RefundSummary{}, err
	}
	return summary, nil
}

// RetryFailed redispatches a bounded batch of failed or unsent cases.
func (uc RefundUseCase) RetryFailed(ctx context.Context, limit int) (int, int, error) {
	cases, err := uc.Refunds.ListDispatchableRefundCases(ctx, limit)
	if err != nil {
		return 0, 0, err
	}
	dispatched, failed := uc.DispatchRefunds(ctx, cases)
	return dispatched, failed, nil
}

// DispatchRefunds sends refunds concurrently on a bounded pool and reports
// how many calls were accepted and how many failed.
func (uc RefundUseCase) DispatchRefunds(ctx context.Context, cases []entities.RefundCase) (int, int) {
	logger := application.ResolveLogger(uc.Logger)
	if len(cases) == 0 {
		return 0, 0
	}
	size := uc.PoolSize
	if size <= 0 {
		size = 8
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		logger.Error("refund pool init failed",
			"event", "escrow_refund_pool_init_failed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "application",
			"error", err.Error(),
		)
		return 0, len(cases)
	}
	defer pool.Release()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		dispatched int
		failed     int
	)
	record := func(ok bool) {
		mu.Lock()
		defer mu.Unlock()
		if ok {
			dispatched++
		} else {
			failed++
		}
	}
	for _, item := range cases {
		item := item
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			record(uc.dispatchOne(ctx, item) == nil)
		}); err != nil {
			wg.Done()
			record(false)
		}
	}
	wg.Wait()
	return dispatched, failed
}

func (uc RefundUseCase) ConfirmRefund(ctx context.Context, confirmation RefundConfirmation) (entities.RefundCase, error) {
	key := strings.TrimSpace(confirmation.IdempotencyKey)
	caseID, ok := strings.CutPrefix(key, entities.RefundIdempotencyKey(""))
	if !ok || caseID == "" {
		return entities.RefundCase{}, domainerrors.ErrUnknownPaymentReference
	}
	refundCase, err := uc.Refunds.GetRefundCase(ctx, caseID)
	if err != nil {
		return entities.RefundCase{}, err
	}
	switch refundCase.Status {
	case entities.RefundStatusCompleted, entities.RefundStatusPartial:
		return refundCase, nil
	}
	if txID := strings.TrimSpace(confirmation.TransactionID); txID != "" && refundCase.RefundTransactionID == "" {
		refundCase.RefundTransactionID = txID
	}
	if confirmation.Succeeded {
		return uc.settle(ctx, refundCase)
	}
	return uc.fail(ctx, refundCase, strings.TrimSpace(confirmation.FailureReason))
}

func (uc RefundUseCase) plan(ctx context.Context, campaign entities.Campaign) (services.RefundPlan, error) {
	donations, err := uc.Donations.ListCompletedDonations(ctx, campaign.CampaignID)
	if err != nil {
		return services.RefundPlan{}, err
	}
	plan := services.AllocateRefunds(campaign.CurrentAmount, donations)
	now := uc.now()

	cases := make([]entities.RefundCase, 0, len(plan.Shares)*2)
	for _, share := range plan.Shares {
		base := entities.RefundCase{
			CampaignID:     campaign.CampaignID,
			DonorID:        share.DonorID,
			DonationID:     share.DonationID,
			OriginalAmount: share.Original,
			RefundRatio:    plan.Ratio,
			Status:         entities.RefundStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if share.Refunded > 0 {
			escrowCase := base
			escrowCase.Method = entities.RefundMethodEscrow
			escrowCase.RefundedAmount = share.Refunded
			escrowCase.RemainingRefund = share.Remaining
			if escrowCase.CaseID, err = uc.IDGen.NewID(ctx); err != nil {
				return services.RefundPlan{}, err
			}
			cases = append(cases, escrowCase)
		}
		if share.Remaining > 0 {
			recoveryCase := base
			recoveryCase.Method = entities.RefundMethodRecovery
			recoveryCase.RemainingRefund = share.Remaining
			if recoveryCase.CaseID, err = uc.IDGen.NewID(ctx); err != nil {
				return services.RefundPlan{}, err
			}
			cases = append(cases, recoveryCase)
		}
	}

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return services.RefundPlan{}, err
	}
	envelope, err := newEscrowEnvelope(eventID, EventRefundIssued, campaign.CampaignID, now, map[string]any{
		"campaign_id":  campaign.CampaignID,
		"recoverable":  plan.Recoverable,
		"base":         plan.Base,
		"allocated":    plan.Allocated,
		"refund_ratio": plan.Ratio.String(),
		"case_count":   len(cases),
	})
	if err != nil {
		return services.RefundPlan{}, err
	}
	if err := uc.Refunds.CreateRefundCases(ctx, cases, []ports.EventEnvelope{envelope}); err != nil {
		return services.RefundPlan{}, err
	}
	return plan, nil
}

func (uc RefundUseCase) dispatchOne(ctx context.Context, refundCase entities.RefundCase) error {
	result, attempts, callErr := uc.Retry.Do(ctx, func(ctx context.Context) (ports.PaymentResult, error) {
		return uc.Gateway.Refund(ctx, ports.RefundRequest{
			IdempotencyKey: entities.RefundIdempotencyKey(refundCase.CaseID),
			DonorID:        refundCase.DonorID,
			DonationID:     refundCase.DonationID,
			Amount:         refundCase.RefundedAmount,
		})
	})
	refundCase.Attempts += attempts
	if callErr != nil {
		if _, err := uc.fail(ctx, refundCase, callErr.Error()); err != nil {
			return err
		}
		return fmt.Errorf("%w: %v", domainerrors.ErrPaymentGatewayFailure, callErr)
	}
	if result.TransactionID != "" {
		refundCase.RefundTransactionID = result.TransactionID
	}

	switch result.Status {
	case ports.PaymentStatusSucceeded:
		_, err := uc.settle(ctx, refundCase)
		return err
	case ports.PaymentStatusFailed:
		if _, err := uc.fail(ctx, refundCase, result.FailureReason); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", domainerrors.ErrPaymentGatewayFailure, result.FailureReason)
	default:
		refundCase.Status = entities.RefundStatusPending
		refundCase.FailureReason = ""
		refundCase.UpdatedAt = uc.now()
		return uc.Refunds.SaveRefundCase(ctx, refundCase)
	}
}

func (uc RefundUseCase) settle(ctx context.Context, refundCase entities.RefundCase) (entities.RefundCase, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()
	refundCase.Status = refundCase.SettledStatus()
	refundCase.FailureReason = ""
	refundCase.UpdatedAt = now

	donationStatus := entities.DonationStatusRefunded
	if refundCase.Status == entities.RefundStatusPartial {
		donationStatus = entities.DonationStatusPartiallyRefunded
	}
	if err := uc.Donations.MarkDonationRefunded(ctx, refundCase.DonationID, donationStatus); err != nil {
		return entities.RefundCase{}, err
	}

	envelope, err := uc.caseEnvelope(ctx, EventRefundCompleted, refundCase, now)
	if err != nil {
		return entities.RefundCase{}, err
	}
	if err := uc.Refunds.SaveRefundCase(ctx, refundCase, envelope); err != nil {
		return entities.RefundCase{}, err
	}
	logger.Info("refund settled",
		"event", "escrow_refund_settled",
		"module", "donor-governance/withdrawal-escrow",
		"layer", "application",
		"case_id", refundCase.CaseID,
		"donation_id", refundCase.DonationID,
		"refunded_amount", refundCase.RefundedAmount,
		"status", string(refundCase.Status),
	)
	return refundCase, nil
}

func (uc RefundUseCase) fail(ctx context.Context, refundCase entities.RefundCase, reason string) (entities.RefundCase, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()
	refundCase.Status = entities.RefundStatusFailed
	refundCase.FailureReason = reason
	refundCase.UpdatedAt = now
	envelope, err := uc.caseEnvelope(ctx, EventRefundFailed, refundCase, now)
	if err != nil {
		return entities.RefundCase{}, err
	}
	if err := uc.Refunds.SaveRefundCase(ctx, refundCase, envelope); err != nil {
		return entities.RefundCase{}, err
	}
	logger.Warn("refund failed",
		"event", "escrow_refund_failed",
		"module", "donor-governance/withdrawal-escrow",
		"layer", "application",
		"case_id", refundCase.CaseID,
		"donation_id", refundCase.DonationID,
		"attempts", refundCase.Attempts,
		"reason", reason,
	)
	return refundCase, nil
}

func (uc RefundUseCase) caseEnvelope(
	ctx context.Context,
	eventType string,
	refundCase entities.RefundCase,
	now time.Time,
) (ports.EventEnvelope, error) {
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return newEscrowEnvelope(eventID, eventType, refundCase.CampaignID, now, map[string]any{
		"case_id":               refundCase.CaseID,
		"campaign_id":           refundCase.CampaignID,
		"donor_id":              refundCase.DonorID,
		"donation_id":           refundCase.DonationID,
		"original_amount":       refundCase.OriginalAmount,
		"refunded_amount":       refundCase.RefundedAmount,
		"remaining_refund":      refundCase.RemainingRefund,
		"refund_ratio":          refundCase.RefundRatio.String(),
		"refund_status":         string(refundCase.Status),
		"refund_method":         string(refundCase.Method),
		"refund_transaction_id": refundCase.RefundTransactionID,
		"failure_reason":        refundCase.FailureReason,
	})
}

func (uc RefundUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
