package commands

import (
	"errors"
	"testing"

	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
)

func TestApproveReleasesOnce(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	f.donate("don-a", "camp-1", "donor-a", 40000)
	request := f.passVote("camp-1", 15000)

	_, err := f.review.Approve(f.ctx, ApproveCommand{RequestID: request.RequestID, Actor: Actor{UserID: "creator-1"}})
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden for non-admin, got %v", err)
	}

	result, err := f.review.Approve(f.ctx, ApproveCommand{RequestID: request.RequestID, Actor: adminActor})
	if err != nil || result.ReleaseError != nil {
		t.Fatalf("approve: err=%v release=%v", err, result.ReleaseError)
	}
	if result.Request.Status != entities.RequestStatusReleased || result.Request.ReleasedAt == nil {
		t.Fatalf("expected released request, got %+v", result.Request)
	}
	if result.Request.AdminReviewedBy != "admin-1" {
		t.Fatalf("expected reviewer to be recorded, got %q", result.Request.AdminReviewedBy)
	}
	if got := f.campaign("camp-1").CurrentAmount; got != 25000 {
		t.Fatalf("expected balance 25000 after release, got %d", got)
	}

	replay, err := f.disbursements.Release(f.ctx, ReleaseCommand{RequestID: request.RequestID})
	if err != nil || !replay.AlreadyReleased {
		t.Fatalf("expected idempotent replay, got %+v err=%v", replay, err)
	}
	key := entities.ReleaseIdempotencyKey(request.RequestID)
	if f.gateway.Calls(key) != 1 || f.gateway.SettledAmount() != 15000 {
		t.Fatalf("funds must move exactly once: calls=%d settled=%d", f.gateway.Calls(key), f.gateway.SettledAmount())
	}
	if got := f.campaign("camp-1").CurrentAmount; got != 25000 {
		t.Fatalf("replay must not debit again, got %d", got)
	}
}

func TestApproveRequiresCompletedVote(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	f.donate("don-a", "camp-1", "donor-a", 40000)
	request := f.openVoting("camp-1", 1000)

	_, err := f.review.Approve(f.ctx, ApproveCommand{RequestID: request.RequestID, Actor: adminActor})
	if !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("approve during voting must fail, got %v", err)
	}
	_, err = f.disbursements.Release(f.ctx, ReleaseCommand{RequestID: request.RequestID})
	if !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("release before approval must fail, got %v", err)
	}
}

func TestReleaseRetriesAfterTransientFailure(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	f.donate("don-a", "camp-1", "donor-a", 40000)
	request := f.passVote("camp-1", 10000)
	key := entities.ReleaseIdempotencyKey(request.RequestID)
	f.gateway.FailTransiently(key, 3)

	result, err := f.review.Approve(f.ctx, ApproveCommand{RequestID: request.RequestID, Actor: adminActor})
	if err != nil {
		t.Fatalf("approval itself must stand: %v", err)
	}
	if !errors.Is(result.ReleaseError, domainerrors.ErrPaymentGatewayFailure) {
		t.Fatalf("expected gateway failure, got %v", result.ReleaseError)
	}
	if result.Request.Status != entities.RequestStatusAdminApproved {
		t.Fatalf("failed release must stay admin_approved, got %s", result.Request.Status)
	}
	if result.Release.Disbursement.Status != entities.DisbursementStatusFailed || result.Release.Disbursement.Attempts != 3 {
		t.Fatalf("unexpected disbursement: %+v", result.Release.Disbursement)
	}
	if got := f.campaign("camp-1").CurrentAmount; got != 40000 {
		t.Fatalf("balance must be untouched, got %d", got)
	}

	retried, err := f.disbursements.Release(f.ctx, ReleaseCommand{RequestID: request.RequestID})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Request.Status != entities.RequestStatusReleased || retried.Disbursement.Attempts != 4 {
		t.Fatalf("unexpected retry result: %+v", retried)
	}
	if retried.Disbursement.DisbursementID != result.Release.Disbursement.DisbursementID {
		t.Fatalf("retry must reuse the disbursement record")
	}
}

func TestDeclinedTransferKeepsApproval(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	f.donate("don-a", "camp-1", "donor-a", 40000)
	request := f.passVote("camp-1", 10000)
	f.gateway.Decline(entities.ReleaseIdempotencyKey(request.RequestID), "account closed")

	result, err := f.review.Approve(f.ctx, ApproveCommand{RequestID: request.RequestID, Actor: adminActor})
	if err != nil || result.ReleaseError == nil {
		t.Fatalf("expected release error, err=%v release=%v", err, result.ReleaseError)
	}
	if result.Release.Disbursement.FailureReason != "account closed" {
		t.Fatalf("expected decline reason, got %+v", result.Release.Disbursement)
	}
	if f.request(request.RequestID).Status != entities.RequestStatusAdminApproved {
		t.Fatalf("declined transfer must leave request approved")
	}
}

func TestPendingTransferConfirmedByWebhook(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	f.donate("don-a", "camp-1", "donor-a", 40000)
	request := f.passVote("camp-1", 10000)
	f.gateway.Mode = ports.PaymentStatusPending

	result, err := f.review.Approve(f.ctx, ApproveCommand{RequestID: request.RequestID, Actor: adminActor})
	if err != nil || result.ReleaseError != nil {
		t.Fatalf("approve: err=%v release=%v", err, result.ReleaseError)
	}
	if !result.Release.Pending || result.Request.Status != entities.RequestStatusAdminApproved {
		t.Fatalf("expected pending transfer, got %+v", result.Release)
	}

	again, err := f.disbursements.Release(f.ctx, ReleaseCommand{RequestID: request.RequestID})
	if err != nil || !again.Pending {
		t.Fatalf("outstanding transfer must not be resent, got %+v err=%v", again, err)
	}
	key := entities.ReleaseIdempotencyKey(request.RequestID)
	if f.gateway.Calls(key) != 1 {
		t.Fatalf("expected one gateway call, got %d", f.gateway.Calls(key))
	}

	notification := PaymentNotification{
		IdempotencyKey: key,
		TransactionID:  result.Release.Disbursement.TransactionID,
		Status:         "succeeded",
	}
	if err := f.webhooks.Handle(f.ctx, notification); err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if f.request(request.RequestID).Status != entities.RequestStatusReleased {
		t.Fatalf("confirmation must release the request")
	}
	if err := f.webhooks.Handle(f.ctx, notification); err != nil {
		t.Fatalf("replayed webhook must be a no-op, got %v", err)
	}
	if got := f.campaign("camp-1").CurrentAmount; got != 30000 {
		t.Fatalf("balance must be debited once, got %d", got)
	}
	if f.countOutbox(EventRequestReleased) != 1 {
		t.Fatalf("expected one released event")
	}
}

func TestWebhookRouting(t *testing.T) {
	f := newFixture(t)
	if err := f.webhooks.Handle(f.ctx, PaymentNotification{IdempotencyKey: "payout:1", Status: "succeeded"}); !errors.Is(err, domainerrors.ErrUnknownPaymentReference) {
		t.Fatalf("expected unknown reference, got %v", err)
	}
	if err := f.webhooks.Handle(f.ctx, PaymentNotification{IdempotencyKey: "release:nope", Status: "processing"}); err != nil {
		t.Fatalf("intermediate status must be ignored, got %v", err)
	}
	if err := f.webhooks.Handle(f.ctx, PaymentNotification{IdempotencyKey: "release:nope", Status: "failed"}); !errors.Is(err, domainerrors.ErrDisbursementNotFound) {
		t.Fatalf("expected disbursement not found, got %v", err)
	}
	if err := f.webhooks.Handle(f.ctx, PaymentNotification{IdempotencyKey: "refund:nope", Status: "succeeded"}); !errors.Is(err, domainerrors.ErrRefundCaseNotFound) {
		t.Fatalf("expected refund case not found, got %v", err)
	}
}
