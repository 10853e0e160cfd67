package commands

import (
	"errors"
	"testing"

	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
)

// seedCancellableCampaign funds camp-1 with 10,000,000 across four donors,
// releases 2,000,000 and leaves a second request admin_rejected.
func seedCancellableCampaign(f *fixture) entities.WithdrawalRequest {
	f.t.Helper()
	f.seedCampaign("camp-1", 20000000)
	f.donate("don-a", "camp-1", "donor-a", 4000000)
	f.donate("don-b", "camp-1", "donor-b", 3000000)
	f.donate("don-c", "camp-1", "donor-c", 2000000)
	f.donate("don-d", "camp-1", "donor-d", 1000000)

	prior := f.passVote("camp-1", 2000000)
	if result, err := f.review.Approve(f.ctx, ApproveCommand{RequestID: prior.RequestID, Actor: adminActor}); err != nil || result.ReleaseError != nil {
		f.t.Fatalf("prior release: err=%v release=%v", err, result.ReleaseError)
	}

	request := f.passVote("camp-1", 1000000)
	rejected, err := f.review.Reject(f.ctx, RejectCommand{
		RequestID: request.RequestID,
		Actor:     adminActor,
		Reason:    "Receipts for the previous release were never provided",
	})
	if err != nil {
		f.t.Fatalf("reject: %v", err)
	}
	return rejected
}

func TestRejectValidation(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	f.donate("don-a", "camp-1", "donor-a", 40000)
	request := f.passVote("camp-1", 1000)

	_, err := f.review.Reject(f.ctx, RejectCommand{RequestID: request.RequestID, Actor: adminActor, Reason: "no"})
	if !errors.Is(err, domainerrors.ErrReasonTooShort) {
		t.Fatalf("expected short reason error, got %v", err)
	}
	_, err = f.review.Reject(f.ctx, RejectCommand{RequestID: request.RequestID, Actor: SystemActor, Reason: "Not enough documentation"})
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	_, err = f.review.CancelCampaignByRejection(f.ctx, CancelCampaignCommand{RequestID: request.RequestID, Actor: adminActor})
	if !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("cancel requires a rejected request, got %v", err)
	}
}

func TestCancelCampaignRefundsRemainingBalance(t *testing.T) {
	f := newFixture(t)
	rejected := seedCancellableCampaign(f)
	if got := f.campaign("camp-1").CurrentAmount; got != 8000000 {
		t.Fatalf("expected 8,000,000 held after prior release, got %d", got)
	}

	result, err := f.review.CancelCampaignByRejection(f.ctx, CancelCampaignCommand{RequestID: rejected.RequestID, Actor: adminActor})
	if err != nil {
		t.Fatalf("cancel campaign: %v", err)
	}
	if !result.CampaignCancelled || f.campaign("camp-1").Status != entities.CampaignStatusCancelled {
		t.Fatalf("campaign must be cancelled")
	}
	if result.Refunds.Failed != 0 || result.Refunds.Dispatched != 4 {
		t.Fatalf("unexpected dispatch counts: %+v", result.Refunds)
	}
	if result.Refunds.Allocated != 8000000 || result.Refunds.Ratio.String() != "0.8" {
		t.Fatalf("unexpected allocation: allocated=%d ratio=%s", result.Refunds.Allocated, result.Refunds.Ratio)
	}

	var refunded, recovery int64
	for _, item := range result.Refunds.Cases {
		switch item.Method {
		case entities.RefundMethodEscrow:
			refunded += item.RefundedAmount
			if item.Status != entities.RefundStatusPartial || item.RefundedAmount*10 != item.OriginalAmount*8 {
				t.Fatalf("unexpected escrow case: %+v", item)
			}
		case entities.RefundMethodRecovery:
			recovery += item.RemainingRefund
			if item.Status != entities.RefundStatusPending {
				t.Fatalf("recovery cases stay pending: %+v", item)
			}
		}
	}
	if refunded != 8000000 || recovery != 2000000 {
		t.Fatalf("expected 8,000,000 refunded and 2,000,000 to recover, got %d and %d", refunded, recovery)
	}
	if donation, _ := f.store.GetDonation("don-a"); donation.Status != entities.DonationStatusPartiallyRefunded {
		t.Fatalf("expected donation marked partially refunded, got %s", donation.Status)
	}

	again, err := f.review.CancelCampaignByRejection(f.ctx, CancelCampaignCommand{RequestID: rejected.RequestID, Actor: adminActor})
	if err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if again.CampaignCancelled || again.Refunds.Dispatched != 0 || len(again.Refunds.Cases) != len(result.Refunds.Cases) {
		t.Fatalf("repeat cancel must not create or resend refunds: %+v", again.Refunds)
	}
	for _, item := range again.Refunds.Cases {
		if item.Method == entities.RefundMethodEscrow && f.gateway.Calls(entities.RefundIdempotencyKey(item.CaseID)) != 1 {
			t.Fatalf("refund %s sent more than once", item.CaseID)
		}
	}
	if f.countOutbox(EventCampaignCancelled) != 1 {
		t.Fatalf("expected one campaign cancelled event")
	}
}

func TestRefundFailureIsIsolatedAndRetried(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	f.donate("don-a", "camp-1", "donor-a", 6000)
	f.donate("don-b", "camp-1", "donor-b", 4000)
	if _, err := f.store.MarkCampaignCancelled(f.ctx, "camp-1", f.now); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.refunds.plan(f.ctx, f.campaign("camp-1")); err != nil {
		t.Fatalf("plan: %v", err)
	}
	cases, _ := f.store.ListRefundCasesByCampaign(f.ctx, "camp-1")
	if len(cases) != 2 {
		t.Fatalf("full refund needs no recovery cases, got %+v", cases)
	}
	declinedKey := entities.RefundIdempotencyKey(cases[0].CaseID)
	f.gateway.Decline(declinedKey, "card expired")

	summary, err := f.refunds.IssueRefunds(f.ctx, "camp-1")
	if err != nil {
		t.Fatalf("issue refunds: %v", err)
	}
	if summary.Dispatched != 1 || summary.Failed != 1 {
		t.Fatalf("one decline must not block the other refund: %+v", summary)
	}
	failed, _ := f.store.GetRefundCase(f.ctx, cases[0].CaseID)
	if failed.Status != entities.RefundStatusFailed || failed.FailureReason != "card expired" {
		t.Fatalf("unexpected failed case: %+v", failed)
	}
	settled, _ := f.store.GetRefundCase(f.ctx, cases[1].CaseID)
	if settled.Status != entities.RefundStatusCompleted {
		t.Fatalf("expected completed case, got %+v", settled)
	}

	f.gateway.ClearDecline(declinedKey)
	dispatched, stillFailed, err := f.refunds.RetryFailed(f.ctx, 10)
	if err != nil || dispatched != 1 || stillFailed != 0 {
		t.Fatalf("retry: dispatched=%d failed=%d err=%v", dispatched, stillFailed, err)
	}
	retried, _ := f.store.GetRefundCase(f.ctx, cases[0].CaseID)
	if retried.Status != entities.RefundStatusCompleted || retried.Attempts != 2 {
		t.Fatalf("unexpected retried case: %+v", retried)
	}
	if f.gateway.SettledAmount() != 10000 {
		t.Fatalf("expected 10000 refunded, got %d", f.gateway.SettledAmount())
	}
}

func TestRefundConfirmedByWebhook(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	f.donate("don-a", "camp-1", "donor-a", 5000)
	if _, err := f.store.MarkCampaignCancelled(f.ctx, "camp-1", f.now); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.gateway.Mode = ports.PaymentStatusPending

	summary, err := f.refunds.IssueRefunds(f.ctx, "camp-1")
	if err != nil || len(summary.Cases) != 1 {
		t.Fatalf("issue refunds: %+v err=%v", summary, err)
	}
	item := summary.Cases[0]
	if item.Status != entities.RefundStatusPending || item.RefundTransactionID == "" || item.Dispatchable() {
		t.Fatalf("expected case awaiting confirmation, got %+v", item)
	}

	notification := PaymentNotification{IdempotencyKey: entities.RefundIdempotencyKey(item.CaseID), Status: "completed"}
	if err := f.webhooks.Handle(f.ctx, notification); err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if err := f.webhooks.Handle(f.ctx, notification); err != nil {
		t.Fatalf("replay: %v", err)
	}
	settled, _ := f.store.GetRefundCase(f.ctx, item.CaseID)
	if settled.Status != entities.RefundStatusCompleted {
		t.Fatalf("expected completed, got %s", settled.Status)
	}
	if f.countOutbox(EventRefundCompleted) != 1 {
		t.Fatalf("replayed confirmation must not emit again")
	}
}

func TestIssueRefundsRequiresCancelledCampaign(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	if _, err := f.refunds.IssueRefunds(f.ctx, "camp-1"); !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition, got %v", err)
	}
}

func TestCancelCampaignWaitsForInFlightRelease(t *testing.T) {
	f := newFixture(t)
	rejected := seedCancellableCampaign(f)
	approved := f.passVote("camp-1", 3000000)
	f.gateway.Mode = ports.PaymentStatusPending
	release, err := f.review.Approve(f.ctx, ApproveCommand{RequestID: approved.RequestID, Actor: adminActor})
	if err != nil || !release.Release.Pending {
		t.Fatalf("expected a pending transfer: err=%v release=%+v", err, release.Release)
	}

	_, err = f.review.CancelCampaignByRejection(f.ctx, CancelCampaignCommand{RequestID: rejected.RequestID, Actor: adminActor})
	if !errors.Is(err, domainerrors.ErrDisbursementInFlight) {
		t.Fatalf("expected in-flight refusal, got %v", err)
	}
	if f.campaign("camp-1").Status != entities.CampaignStatusActive {
		t.Fatalf("refused cancellation must leave the campaign active")
	}
	if f.request(approved.RequestID).Status != entities.RequestStatusAdminApproved {
		t.Fatalf("approved request must not be cancelled under its transfer")
	}
	if cases, _ := f.store.ListRefundCasesByCampaign(f.ctx, "camp-1"); len(cases) != 0 {
		t.Fatalf("no refunds may be planned while money is in flight: %+v", cases)
	}

	if err := f.webhooks.Handle(f.ctx, PaymentNotification{
		IdempotencyKey: entities.ReleaseIdempotencyKey(approved.RequestID),
		TransactionID:  release.Release.Disbursement.TransactionID,
		Status:         "succeeded",
	}); err != nil {
		t.Fatalf("webhook: %v", err)
	}
	f.gateway.Mode = ""

	result, err := f.review.CancelCampaignByRejection(f.ctx, CancelCampaignCommand{RequestID: rejected.RequestID, Actor: adminActor})
	if err != nil {
		t.Fatalf("cancel after settlement: %v", err)
	}
	if f.request(approved.RequestID).Status != entities.RequestStatusReleased {
		t.Fatalf("settled request must stay released")
	}
	if result.Refunds.Allocated != 5000000 {
		t.Fatalf("refunds must cover only the 5,000,000 still held, got %d", result.Refunds.Allocated)
	}
}

func TestTransferSettlingAfterCascadeIsBookedBeforeRefunds(t *testing.T) {
	f := newFixture(t)
	rejected := seedCancellableCampaign(f)
	f.store.SetRequest(entities.WithdrawalRequest{
		RequestID:   "req-late",
		CampaignID:  "camp-1",
		RequestedBy: "creator-1",
		Amount:      3000000,
		Status:      entities.RequestStatusCancelled,
		CreatedAt:   f.now,
		UpdatedAt:   f.now,
	})
	key := entities.ReleaseIdempotencyKey("req-late")
	if err := f.store.SaveDisbursement(f.ctx, entities.Disbursement{
		DisbursementID: "disb-late",
		RequestID:      "req-late",
		CampaignID:     "camp-1",
		RecipientID:    "creator-1",
		IdempotencyKey: key,
		TransactionID:  "tx-late",
		Amount:         3000000,
		Status:         entities.DisbursementStatusPending,
		CreatedAt:      f.now,
		UpdatedAt:      f.now,
	}); err != nil {
		t.Fatalf("seed disbursement: %v", err)
	}

	result, err := f.review.CancelCampaignByRejection(f.ctx, CancelCampaignCommand{RequestID: rejected.RequestID, Actor: adminActor})
	if !errors.Is(err, domainerrors.ErrDisbursementInFlight) || !result.CampaignCancelled {
		t.Fatalf("expected cancelled campaign with deferred refunds: result=%+v err=%v", result, err)
	}
	if cases, _ := f.store.ListRefundCasesByCampaign(f.ctx, "camp-1"); len(cases) != 0 {
		t.Fatalf("refunds must wait for the transfer: %+v", cases)
	}

	if err := f.webhooks.Handle(f.ctx, PaymentNotification{IdempotencyKey: key, TransactionID: "tx-late", Status: "succeeded"}); err != nil {
		t.Fatalf("late confirmation must be accepted, got %v", err)
	}
	if f.request("req-late").Status != entities.RequestStatusCancelled {
		t.Fatalf("cancelled request must stay cancelled")
	}
	if got := f.campaign("camp-1").CurrentAmount; got != 5000000 {
		t.Fatalf("settled transfer must be debited, got %d", got)
	}

	again, err := f.review.CancelCampaignByRejection(f.ctx, CancelCampaignCommand{RequestID: rejected.RequestID, Actor: adminActor})
	if err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if again.Refunds.Allocated != 5000000 {
		t.Fatalf("refunds plus payouts must not exceed what was held, allocated %d", again.Refunds.Allocated)
	}
}

func TestSecondRefundPlannerDoesNotReannounce(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	f.donate("don-a", "camp-1", "donor-a", 6000)
	f.donate("don-b", "camp-1", "donor-b", 4000)
	if _, err := f.store.MarkCampaignCancelled(f.ctx, "camp-1", f.now); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	campaign := f.campaign("camp-1")

	// Two planners racing on the same campaign write the same donation/method pairs.
	for i := 0; i < 2; i++ {
		if _, err := f.refunds.plan(f.ctx, campaign); err != nil {
			t.Fatalf("plan %d: %v", i, err)
		}
	}
	cases, err := f.store.ListRefundCasesByCampaign(f.ctx, "camp-1")
	if err != nil {
		t.Fatalf("list cases: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected one case per donation, got %d", len(cases))
	}
	if got := f.countOutbox(EventRefundIssued); got != 1 {
		t.Fatalf("expected one refund issued event, got %d", got)
	}
}
