package commands

import (
	"context"
	"log/slog"
	"strings"

	application "fundgate/contexts/donor-governance/withdrawal-escrow/application"
	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
)

// PaymentWebhookUseCase routes gateway confirmations by idempotency key.
type PaymentWebhookUseCase struct {
	Disbursements DisbursementUseCase
	Refunds       RefundUseCase
	Logger        *slog.Logger
}

// PaymentNotification is a gateway callback keyed by the idempotency key we sent.
type PaymentNotification struct {
	IdempotencyKey string
	TransactionID  string
	Status         string
	FailureReason  string
}

func (uc PaymentWebhookUseCase) Handle(ctx context.Context, notification PaymentNotification) error {
	logger := application.ResolveLogger(uc.Logger)
	key := strings.TrimSpace(notification.IdempotencyKey)
	status := strings.ToLower(strings.TrimSpace(notification.Status))
	var succeeded bool
	switch status {
	case "succeeded", "success", "completed":
		succeeded = true
	case "failed", "declined":
		succeeded = false
	default:
		// Intermediate statuses carry nothing to apply.
		logger.Debug("payment notification ignored",
			"event", "escrow_payment_notification_ignored",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "application",
			"idempotency_key", key,
			"status", status,
		)
		return nil
	}

	logger.Info("payment notification received",
		"event", "escrow_payment_notification_received",
		"module", "donor-governance/withdrawal-escrow",
		"layer", "application",
		"idempotency_key", key,
		"transaction_id", notification.TransactionID,
		"status", status,
	)
	switch {
	case strings.HasPrefix(key, "release:"):
		_, err := uc.Disbursements.ConfirmTransfer(ctx, TransferConfirmation{
			IdempotencyKey: key,
			TransactionID:  notification.TransactionID,
			Succeeded:      succeeded,
			FailureReason:  notification.FailureReason,
		})
		return err
	case strings.HasPrefix(key, "refund:"):
		_, err := uc.Refunds.ConfirmRefund(ctx, RefundConfirmation{
			IdempotencyKey: key,
			TransactionID:  notification.TransactionID,
			Succeeded:      succeeded,
			FailureReason:  notification.FailureReason,
		})
		return err
	default:
		return domainerrors.ErrUnknownPaymentReference
	}
}
