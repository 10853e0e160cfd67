package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "fundgate/contexts/donor-governance/withdrawal-escrow/application"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
)

// AdminReviewUseCase is the human decision after a passed vote.
type AdminReviewUseCase struct {
	Requests      ports.RequestRepository
	Campaigns     ports.CampaignLedger
	Outbox        ports.OutboxWriter
	Disbursements DisbursementUseCase
	Refunds       RefundUseCase
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	Logger        *slog.Logger
}

// ApproveCommand is the admin decision releasing a request that passed its vote.
type ApproveCommand struct {
	RequestID string
	Actor     Actor
}

// ApproveResult carries the approved request and the release it started.
type ApproveResult struct {
	Request      entities.WithdrawalRequest
	Release      ReleaseResult
	ReleaseError error
}

// RejectCommand records an admin rejection with the reviewer's reason.
type RejectCommand struct {
	RequestID string
	Actor     Actor
	Reason    string
}

// CancelCampaignCommand cancels a campaign after one of its requests was rejected.
type CancelCampaignCommand struct {
	RequestID string
	Actor     Actor
}

// CancelCampaignResult reports the cancellation cascade and the refunds it issued.
type CancelCampaignResult struct {
	Request           entities.WithdrawalRequest
	CampaignCancelled bool
	CancelledRequests []string
	Refunds           RefundSummary
}

// Approve records the decision and then tries the release. A release failure
// leaves the request admin_approved and is reported in the result, not as
// an error, because the approval itself stands.
func (uc AdminReviewUseCase) Approve(ctx context.Context, cmd ApproveCommand) (ApproveResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Actor.IsAdmin() {
		return ApproveResult{}, domainerrors.ErrForbidden
	}
	request, err := uc.Requests.GetRequest(ctx, strings.TrimSpace(cmd.RequestID))
	if err != nil {
		return ApproveResult{}, err
	}
	if request.Status != entities.RequestStatusVotingCompleted {
		return ApproveResult{}, domainerrors.ErrIllegalTransition
	}

	now := uc.now()
	next := request
	next.Status = entities.RequestStatusAdminApproved
	next.AdminReviewedAt = &now
	next.AdminReviewedBy = strings.TrimSpace(cmd.Actor.UserID)
	next.UpdatedAt = now
	if err := uc.transition(ctx, request.Status, next, EventRequestAdminApproved, now, nil); err != nil {
		return ApproveResult{}, err
	}
	logger.Info("withdrawal request approved",
		"event", "escrow_request_admin_approved",
		"module", "donor-governance/withdrawal-escrow",
		"layer", "application",
		"request_id", next.RequestID,
		"reviewer_id", next.AdminReviewedBy,
	)

	result := ApproveResult{Request: next}
	release, err := uc.Disbursements.Release(ctx, ReleaseCommand{RequestID: next.RequestID})
	if err != nil {
		logger.Warn("release after approval failed",
			"event", "escrow_release_after_approval_failed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "application",
			"request_id", next.RequestID,
			"error", err.Error(),
		)
		result.ReleaseError = err
		result.Release = release
		return result, nil
	}
	result.Release = release
	result.Request = release.Request
	return result, nil
}

func (uc AdminReviewUseCase) Reject(ctx context.Context, cmd RejectCommand) (entities.WithdrawalRequest, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Actor.IsAdmin() {
		return entities.WithdrawalRequest{}, domainerrors.ErrForbidden
	}
	if !entities.ValidReason(cmd.Reason) {
		return entities.WithdrawalRequest{}, domainerrors.ErrReasonTooShort
	}
	request, err := uc.Requests.GetRequest(ctx, strings.TrimSpace(cmd.RequestID))
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	if request.Status != entities.RequestStatusVotingCompleted {
		return entities.WithdrawalRequest{}, domainerrors.ErrIllegalTransition
	}

	now := uc.now()
	next := request
	next.Status = entities.RequestStatusAdminRejected
	next.AdminReviewedAt = &now
	next.AdminReviewedBy = strings.TrimSpace(cmd.Actor.UserID)
	next.AdminRejectionReason = strings.TrimSpace(cmd.Reason)
	next.UpdatedAt = now
	if err := uc.transition(ctx, request.Status, next, EventRequestAdminRejected, now, map[string]any{
		"rejection_reason": next.AdminRejectionReason,
	}); err != nil {
		return entities.WithdrawalRequest{}, err
	}
	logger.Info("withdrawal request rejected",
		"event", "escrow_request_admin_rejected",
		"module", "donor-governance/withdrawal-escrow",
		"layer", "application",
		"request_id", next.RequestID,
		"reviewer_id", next.AdminReviewedBy,
	)
	return next, nil
}

// CancelCampaignByRejection cancels the campaign behind a rejected request,
// cascades cancellation to its other active requests and issues refunds.
// Repeating the call only redispatches refunds still owed.
func (uc AdminReviewUseCase) CancelCampaignByRejection(ctx context.Context, cmd CancelCampaignCommand) (CancelCampaignResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Actor.IsAdmin() {
		return CancelCampaignResult{}, domainerrors.ErrForbidden
	}
	request, err := uc.Requests.GetRequest(ctx, strings.TrimSpace(cmd.RequestID))
	if err != nil {
		return CancelCampaignResult{}, err
	}
	if request.Status != entities.RequestStatusAdminRejected {
		return CancelCampaignResult{}, domainerrors.ErrIllegalTransition
	}

	// Approved siblings must not have money in flight. Settled transfers are
	// booked as released first so they are not cancelled under the payout.
	siblings, err := uc.Requests.ListRequestsByCampaign(ctx, request.CampaignID)
	if err != nil {
		return CancelCampaignResult{}, err
	}
	for _, sibling := range siblings {
		if sibling.Status != entities.RequestStatusAdminApproved {
			continue
		}
		if err := uc.Disbursements.SettleForCancellation(ctx, sibling); err != nil {
			return CancelCampaignResult{}, err
		}
	}

	now := uc.now()
	cancelled, err := uc.Campaigns.MarkCampaignCancelled(ctx, request.CampaignID, now)
	if err != nil {
		return CancelCampaignResult{}, err
	}
	result := CancelCampaignResult{Request: request, CampaignCancelled: cancelled}
	if cancelled {
		eventID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return CancelCampaignResult{}, err
		}
		envelope, err := newEscrowEnvelope(eventID, EventCampaignCancelled, request.CampaignID, now, map[string]any{
			"campaign_id":      request.CampaignID,
			"cause":            "withdrawal_request_rejected",
			"request_id":       request.RequestID,
			"rejection_reason": request.AdminRejectionReason,
			"cancelled_by":     strings.TrimSpace(cmd.Actor.UserID),
		})
		if err != nil {
			return CancelCampaignResult{}, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return CancelCampaignResult{}, err
		}
	}

	siblings, err = uc.Requests.ListRequestsByCampaign(ctx, request.CampaignID)
	if err != nil {
		return CancelCampaignResult{}, err
	}
	for _, sibling := range siblings {
		if sibling.Status.IsTerminal() {
			continue
		}
		next := sibling
		next.Status = entities.RequestStatusCancelled
		next.UpdatedAt = now
		if err := uc.transition(ctx, sibling.Status, next, EventRequestCancelled, now, map[string]any{
			"cause": "campaign_cancelled",
		}); err != nil {
			logger.Warn("cascade cancel skipped request",
				"event", "escrow_cascade_cancel_skipped",
				"module", "donor-governance/withdrawal-escrow",
				"layer", "application",
				"request_id", sibling.RequestID,
				"error", err.Error(),
			)
			continue
		}
		result.CancelledRequests = append(result.CancelledRequests, sibling.RequestID)
	}

	// A release that saved its pending transfer before the cascade may still
	// be out with the gateway. Refunds wait until it settles; the call can be
	// repeated.
	if err := uc.settleCancelledTransfers(ctx, request.CampaignID); err != nil {
		logger.Warn("refunds deferred while a transfer is in flight",
			"event", "escrow_refunds_deferred",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "application",
			"campaign_id", request.CampaignID,
			"error", err.Error(),
		)
		return result, err
	}

	refunds, err := uc.Refunds.IssueRefunds(ctx, request.CampaignID)
	if err != nil {
		return CancelCampaignResult{}, err
	}
	result.Refunds = refunds

	logger.Info("campaign cancelled after rejection",
		"event", "escrow_campaign_cancelled",
		"module", "donor-governance/withdrawal-escrow",
		"layer", "application",
		"campaign_id", request.CampaignID,
		"request_id", request.RequestID,
		"cancelled_requests", len(result.CancelledRequests),
		"refund_cases", len(refunds.Cases),
		"refunds_failed", refunds.Failed,
	)
	return result, nil
}

func (uc AdminReviewUseCase) settleCancelledTransfers(ctx context.Context, campaignID string) error {
	requests, err := uc.Requests.ListRequestsByCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	for _, item := range requests {
		if item.Status != entities.RequestStatusCancelled && item.Status != entities.RequestStatusAdminApproved {
			continue
		}
		if err := uc.Disbursements.SettleForCancellation(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (uc AdminReviewUseCase) transition(
	ctx context.Context,
	from entities.RequestStatus,
	next entities.WithdrawalRequest,
	eventType string,
	now time.Time,
	extra map[string]any,
) error {
	if !entities.CanTransition(from, next.Status) {
		return domainerrors.ErrIllegalTransition
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{
		"request_id":        next.RequestID,
		"campaign_id":       next.CampaignID,
		"previous_status":   string(from),
		"status":            string(next.Status),
		"amount":            next.Amount,
		"admin_reviewed_by": next.AdminReviewedBy,
		"admin_reviewed_at": formatOptionalTime(next.AdminReviewedAt),
	}
	for key, value := range extra {
		data[key] = value
	}
	envelope, err := newEscrowEnvelope(eventID, eventType, next.CampaignID, now, data)
	if err != nil {
		return err
	}
	swapped, err := uc.Requests.TransitionRequest(ctx, from, next, envelope)
	if err != nil {
		return err
	}
	if !swapped {
		return domainerrors.ErrIllegalTransition
	}
	return nil
}

func (uc AdminReviewUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
