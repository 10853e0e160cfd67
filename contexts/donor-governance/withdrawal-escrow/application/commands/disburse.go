package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "fundgate/contexts/donor-governance/withdrawal-escrow/application"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
)

// DisbursementUseCase moves approved funds to the campaign creator. Each
// request has exactly one disbursement and one idempotency key, and the
// request only reaches released once the gateway confirms the transfer.
type DisbursementUseCase struct {
	Requests      ports.RequestRepository
	Disbursements ports.DisbursementRepository
	Campaigns     ports.CampaignLedger
	Gateway       ports.PaymentGateway
	Retry         RetryPolicy
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	Logger        *slog.Logger
}

// ReleaseCommand names the admin-approved request to pay out.
type ReleaseCommand struct {
	RequestID string
}

// ReleaseResult is the request and its disbursement after a release attempt.
type ReleaseResult struct {
	Request         entities.WithdrawalRequest
	Disbursement    entities.Disbursement
	AlreadyReleased bool
	Pending         bool
}

// TransferConfirmation is the gateway's verdict on a pending release.
type TransferConfirmation struct {
	IdempotencyKey string
	TransactionID  string
	Succeeded      bool
	FailureReason  string
}

func (uc DisbursementUseCase) Release(ctx context.Context, cmd ReleaseCommand) (ReleaseResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	request, err := uc.Requests.GetRequest(ctx, strings.TrimSpace(cmd.RequestID))
	if err != nil {
		return ReleaseResult{}, err
	}
	if request.Status == entities.RequestStatusReleased {
		disbursement, _, err := uc.Disbursements.GetDisbursementByRequest(ctx, request.RequestID)
		if err != nil {
			return ReleaseResult{}, err
		}
		return ReleaseResult{Request: request, Disbursement: disbursement, AlreadyReleased: true}, nil
	}
	if request.Status != entities.RequestStatusAdminApproved {
		return ReleaseResult{}, domainerrors.ErrIllegalTransition
	}

	now := uc.now()
	disbursement, found, err := uc.Disbursements.GetDisbursementByRequest(ctx, request.RequestID)
	if err != nil {
		return ReleaseResult{}, err
	}
	if found {
		switch {
		case disbursement.Status == entities.DisbursementStatusSucceeded:
			// The transfer settled but the request was not advanced yet.
			return uc.completeRelease(ctx, request, disbursement)
		case disbursement.Outstanding():
			return ReleaseResult{Request: request, Disbursement: disbursement, Pending: true}, nil
		}
	} else {
		disbursementID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return ReleaseResult{}, err
		}
		disbursement = entities.Disbursement{
			DisbursementID: disbursementID,
			RequestID:      request.RequestID,
			CampaignID:     request.CampaignID,
			RecipientID:    request.RequestedBy,
			IdempotencyKey: entities.ReleaseIdempotencyKey(request.RequestID),
			Amount:         request.Amount,
			Status:         entities.DisbursementStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	// The pending record is written before the request is re-read, and a
	// campaign cancellation writes the request before it reads disbursements,
	// so one of the two always sees the other.
	disbursement.Status = entities.DisbursementStatusPending
	disbursement.UpdatedAt = now
	if err := uc.Disbursements.SaveDisbursement(ctx, disbursement); err != nil {
		return ReleaseResult{}, err
	}
	current, err := uc.Requests.GetRequest(ctx, request.RequestID)
	if err != nil {
		return ReleaseResult{}, err
	}
	if current.Status != entities.RequestStatusAdminApproved {
		disbursement.Status = entities.DisbursementStatusFailed
		disbursement.FailureReason = "request " + string(current.Status) + " before transfer"
		if err := uc.Disbursements.SaveDisbursement(ctx, disbursement); err != nil {
			return ReleaseResult{}, err
		}
		return ReleaseResult{Request: current, Disbursement: disbursement}, domainerrors.ErrIllegalTransition
	}

	result, attempts, callErr := uc.Retry.Do(ctx, func(ctx context.Context) (ports.PaymentResult, error) {
		return uc.Gateway.Transfer(ctx, ports.TransferRequest{
			IdempotencyKey: disbursement.IdempotencyKey,
			RecipientID:    disbursement.RecipientID,
			Reference:      request.RequestID,
			Amount:         disbursement.Amount,
		})
	})
	disbursement.Attempts += attempts
	disbursement.UpdatedAt = uc.now()
	if callErr != nil {
		disbursement.Status = entities.DisbursementStatusFailed
		disbursement.FailureReason = callErr.Error()
		if err := uc.Disbursements.SaveDisbursement(ctx, disbursement); err != nil {
			return ReleaseResult{}, err
		}
		logger.Error("disbursement transfer failed",
			"event", "escrow_disbursement_transfer_failed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "application",
			"request_id", request.RequestID,
			"idempotency_key", disbursement.IdempotencyKey,
			"attempts", disbursement.Attempts,
			"error", callErr.Error(),
		)
		return ReleaseResult{Request: request, Disbursement: disbursement},
			fmt.Errorf("%w: %v", domainerrors.ErrPaymentGatewayFailure, callErr)
	}

	if result.TransactionID != "" {
		disbursement.TransactionID = result.TransactionID
	}
	switch result.Status {
	case ports.PaymentStatusSucceeded:
		disbursement.Status = entities.DisbursementStatusSucceeded
		disbursement.FailureReason = ""
		if err := uc.Disbursements.SaveDisbursement(ctx, disbursement); err != nil {
			return ReleaseResult{}, err
		}
		return uc.completeRelease(ctx, request, disbursement)
	case ports.PaymentStatusFailed:
		disbursement.Status = entities.DisbursementStatusFailed
		disbursement.FailureReason = result.FailureReason
		if err := uc.Disbursements.SaveDisbursement(ctx, disbursement); err != nil {
			return ReleaseResult{}, err
		}
		return ReleaseResult{Request: request, Disbursement: disbursement},
			fmt.Errorf("%w: %s", domainerrors.ErrPaymentGatewayFailure, result.FailureReason)
	default:
		disbursement.Status = entities.DisbursementStatusPending
		disbursement.FailureReason = ""
		if err := uc.Disbursements.SaveDisbursement(ctx, disbursement); err != nil {
			return ReleaseResult{}, err
		}
		logger.Info("disbursement awaiting confirmation",
			"event", "escrow_disbursement_pending",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "application",
			"request_id", request.RequestID,
			"transaction_id", disbursement.TransactionID,
		)
		return ReleaseResult{Request: request, Disbursement: disbursement, Pending: true}, nil
	}
}

// ConfirmTransfer applies the asynchronous gateway outcome. Replayed
// confirmations are no-ops.
func (uc DisbursementUseCase) ConfirmTransfer(ctx context.Context, confirmation TransferConfirmation) (ReleaseResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	disbursement, err := uc.Disbursements.GetDisbursementByKey(ctx, strings.TrimSpace(confirmation.IdempotencyKey))
	if err != nil {
		return ReleaseResult{}, err
	}
	request, err := uc.Requests.GetRequest(ctx, disbursement.RequestID)
	if err != nil {
		return ReleaseResult{}, err
	}
	if txID := strings.TrimSpace(confirmation.TransactionID); txID != "" && disbursement.TransactionID == "" {
		disbursement.TransactionID = txID
	}

	if disbursement.Status == entities.DisbursementStatusSucceeded {
		if request.Status == entities.RequestStatusReleased {
			return ReleaseResult{Request: request, Disbursement: disbursement, AlreadyReleased: true}, nil
		}
		return uc.completeRelease(ctx, request, disbursement)
	}

	disbursement.UpdatedAt = uc.now()
	if !confirmation.Succeeded {
		disbursement.Status = entities.DisbursementStatusFailed
		disbursement.FailureReason = strings.TrimSpace(confirmation.FailureReason)
		if err := uc.Disbursements.SaveDisbursement(ctx, disbursement); err != nil {
			return ReleaseResult{}, err
		}
		logger.Warn("disbursement declined by gateway",
			"event", "escrow_disbursement_declined",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "application",
			"request_id", request.RequestID,
			"transaction_id", disbursement.TransactionID,
			"reason", disbursement.FailureReason,
		)
		return ReleaseResult{Request: request, Disbursement: disbursement}, nil
	}

	disbursement.Status = entities.DisbursementStatusSucceeded
	disbursement.FailureReason = ""
	if err := uc.Disbursements.SaveDisbursement(ctx, disbursement); err != nil {
		return ReleaseResult{}, err
	}
	return uc.completeRelease(ctx, request, disbursement)
}

// completeRelease debits the campaign balance under the disbursement key and
// then advances the request. Both steps are idempotent, so a crash between
// them is repaired by any later call.
func (uc DisbursementUseCase) completeRelease(
	ctx context.Context,
	request entities.WithdrawalRequest,
	disbursement entities.Disbursement,
) (ReleaseResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := uc.Campaigns.DecrementBalance(ctx, request.CampaignID, disbursement.Amount, disbursement.IdempotencyKey); err != nil {
		return ReleaseResult{}, err
	}

	now := uc.now()
	next := request
	next.Status = entities.RequestStatusReleased
	next.ReleasedAt = &now
	next.UpdatedAt = now

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return ReleaseResult{}, err
	}
	envelope, err := newEscrowEnvelope(eventID, EventRequestReleased, request.CampaignID, now, map[string]any{
		"request_id":     request.RequestID,
		"campaign_id":    request.CampaignID,
		"amount":         disbursement.Amount,
		"recipient_id":   disbursement.RecipientID,
		"transaction_id": disbursement.TransactionID,
		"released_at":    now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return ReleaseResult{}, err
	}
	swapped, err := uc.Requests.TransitionRequest(ctx, entities.RequestStatusAdminApproved, next, envelope)
	if err != nil {
		return ReleaseResult{}, err
	}
	if !swapped {
		current, err := uc.Requests.GetRequest(ctx, request.RequestID)
		if err != nil {
			return ReleaseResult{}, err
		}
		if current.Status == entities.RequestStatusReleased {
			return ReleaseResult{Request: current, Disbursement: disbursement, AlreadyReleased: true}, nil
		}
		if current.Status == entities.RequestStatusCancelled {
			// The money left before the cancellation won. The debit above keeps
			// the balance, and so any later refund plan, truthful.
			logger.Warn("transfer settled for cancelled request",
				"event", "escrow_release_after_cancel",
				"module", "donor-governance/withdrawal-escrow",
				"layer", "application",
				"request_id", request.RequestID,
				"campaign_id", request.CampaignID,
				"amount", disbursement.Amount,
				"transaction_id", disbursement.TransactionID,
			)
			return ReleaseResult{Request: current, Disbursement: disbursement}, nil
		}
		return ReleaseResult{}, errors.Join(domainerrors.ErrIllegalTransition,
			fmt.Errorf("request %s moved to %s during release", request.RequestID, current.Status))
	}

	logger.Info("withdrawal released",
		"event", "escrow_request_released",
		"module", "donor-governance/withdrawal-escrow",
		"layer", "application",
		"request_id", next.RequestID,
		"campaign_id", next.CampaignID,
		"amount", disbursement.Amount,
		"transaction_id", disbursement.TransactionID,
	)
	return ReleaseResult{Request: next, Disbursement: disbursement}, nil
}

// SettleForCancellation books or blocks the request's transfer before its
// campaign is cancelled or refunded. A succeeded transfer is applied to the
// balance; a pending one returns ErrDisbursementInFlight.
func (uc DisbursementUseCase) SettleForCancellation(ctx context.Context, request entities.WithdrawalRequest) error {
	disbursement, found, err := uc.Disbursements.GetDisbursementByRequest(ctx, request.RequestID)
	if err != nil || !found {
		return err
	}
	switch disbursement.Status {
	case entities.DisbursementStatusPending:
		return fmt.Errorf("%w: request %s", domainerrors.ErrDisbursementInFlight, request.RequestID)
	case entities.DisbursementStatusSucceeded:
		if request.Status == entities.RequestStatusReleased {
			return nil
		}
		_, err := uc.completeRelease(ctx, request, disbursement)
		return err
	}
	return nil
}

func (uc DisbursementUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
