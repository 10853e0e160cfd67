package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fundgate/contexts/donor-governance/withdrawal-escrow/adapters/memory"
	paymentadapter "fundgate/contexts/donor-governance/withdrawal-escrow/adapters/payment"
	"fundgate/contexts/donor-governance/withdrawal-escrow/application/commands"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
	"fundgate/internal/shared/events"

	"github.com/shopspring/decimal"
)

type harness struct {
	ctx           context.Context
	store         *memory.Store
	gateway       *paymentadapter.SandboxGateway
	now           time.Time
	requests      commands.RequestUseCase
	voting        commands.VotingUseCase
	closer        commands.CloseVotingUseCase
	disbursements commands.DisbursementUseCase
	refunds       commands.RefundUseCase
}

func newHarness() *harness {
	h := &harness{
		ctx:     context.Background(),
		store:   memory.NewStore(),
		gateway: paymentadapter.NewSandboxGateway(),
		now:     time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC),
	}
	h.store.SetClock(func() time.Time { return h.now })
	h.requests = commands.RequestUseCase{
		Requests:             h.store,
		Campaigns:            h.store,
		Idempotency:          h.store,
		Clock:                h.store,
		IDGen:                h.store,
		VotingStartDelay:     24 * time.Hour,
		MilestonePercentages: []int{50, 100},
	}
	h.voting = commands.VotingUseCase{Requests: h.store, Clock: h.store, IDGen: h.store, VotingDuration: 72 * time.Hour}
	h.closer = commands.CloseVotingUseCase{
		Requests:          h.store,
		Clock:             h.store,
		IDGen:             h.store,
		ApprovalThreshold: decimal.NewFromInt(50),
	}
	h.disbursements = commands.DisbursementUseCase{
		Requests:      h.store,
		Disbursements: h.store,
		Campaigns:     h.store,
		Gateway:       h.gateway,
		Retry:         commands.RetryPolicy{Attempts: 1},
		Clock:         h.store,
		IDGen:         h.store,
	}
	h.refunds = commands.RefundUseCase{
		Refunds:   h.store,
		Campaigns: h.store,
		Donations: h.store,
		Gateway:   h.gateway,
		Retry:     commands.RetryPolicy{Attempts: 1},
		Clock:     h.store,
		IDGen:     h.store,
		PoolSize:  2,
	}
	h.store.SetCampaign(entities.Campaign{
		CampaignID: "camp-1",
		CreatorID:  "creator-1",
		GoalAmount: 100000,
		Status:     entities.CampaignStatusActive,
	})
	return h
}

func (h *harness) donate(donationID string, amount int64) {
	h.store.AddDonation(entities.DonationRecord{
		DonationID: donationID,
		CampaignID: "camp-1",
		DonorID:    "donor-" + donationID,
		Amount:     amount,
		Status:     entities.DonationStatusCompleted,
	})
}

type recordingPublisher struct {
	topics []string
	failOn string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ ports.EventEnvelope) error {
	if topic == p.failOn {
		return errors.New("broker unavailable")
	}
	p.topics = append(p.topics, topic)
	return nil
}

type capturingSubscriber struct {
	topic   string
	group   string
	handler func(context.Context, ports.EventEnvelope) error
}

func (s *capturingSubscriber) Subscribe(
	_ context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	s.topic = topic
	s.group = consumerGroup
	s.handler = handler
	return nil
}

func TestSweeperStartsAndClosesWindows(t *testing.T) {
	h := newHarness()
	h.donate("a", 50000)
	created, err := h.requests.CreateRequest(h.ctx, commands.CreateRequestCommand{
		CampaignID:  "camp-1",
		RequestedBy: "creator-1",
		Amount:      10000,
		Reason:      "Venue deposit for the launch event",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sweeper := VotingWindowSweeper{Requests: h.store, Voting: h.voting, Closer: h.closer, Clock: h.store}

	result, err := sweeper.RunOnce(h.ctx)
	if err != nil || result != (SweepResult{}) {
		t.Fatalf("nothing is due yet: %+v err=%v", result, err)
	}

	h.now = h.now.Add(24 * time.Hour)
	result, err = sweeper.RunOnce(h.ctx)
	if err != nil || result.Started != 1 {
		t.Fatalf("expected one window started: %+v err=%v", result, err)
	}

	h.now = h.now.Add(72 * time.Hour)
	result, err = sweeper.RunOnce(h.ctx)
	if err != nil || result.Closed != 1 {
		t.Fatalf("expected one window closed: %+v err=%v", result, err)
	}
	request, _ := h.store.GetRequest(h.ctx, created.Request.RequestID)
	if request.Status != entities.RequestStatusVotingRejected {
		t.Fatalf("window without votes must close rejected, got %s", request.Status)
	}

	result, err = sweeper.RunOnce(h.ctx)
	if err != nil || result != (SweepResult{}) {
		t.Fatalf("second sweep must be a no-op: %+v err=%v", result, err)
	}
}

func TestOutboxRelayHoldsOnlyTheFailingCampaign(t *testing.T) {
	h := newHarness()
	h.donate("a", 50000)
	if _, err := h.requests.CreateRequest(h.ctx, commands.CreateRequestCommand{
		CampaignID:  "camp-1",
		RequestedBy: "creator-1",
		Amount:      10000,
		Reason:      "Venue deposit for the launch event",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	appendEvent := func(id string, eventType string, campaignID string, offset time.Duration) {
		event, _ := events.New(id, eventType, "withdrawal-escrow", "campaign_id", campaignID, h.now.Add(offset), map[string]any{})
		if err := h.store.AppendOutbox(h.ctx, event); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	appendEvent("evt-2", commands.EventCampaignCancelled, "camp-1", time.Second)
	appendEvent("evt-3", commands.EventRefundIssued, "camp-1", 2*time.Second)
	appendEvent("evt-4", commands.EventRefundIssued, "camp-2", 3*time.Second)

	failing := &recordingPublisher{failOn: commands.EventCampaignCancelled}
	relay := OutboxRelay{Outbox: h.store, Publisher: failing, Clock: h.store}
	if err := relay.RunOnce(h.ctx); err == nil {
		t.Fatalf("expected publish failure to surface")
	}
	want := []string{commands.EventRequestCreated, commands.EventRefundIssued}
	if len(failing.topics) != 2 || failing.topics[0] != want[0] || failing.topics[1] != want[1] {
		t.Fatalf("expected camp-1 created and camp-2 refund only, got %v", failing.topics)
	}
	pending, _ := h.store.ListPendingOutbox(h.ctx, 0)
	if len(pending) != 2 || pending[0].EventType != commands.EventCampaignCancelled || pending[1].PartitionKey != "camp-1" {
		t.Fatalf("camp-1 rows after the failure must stay pending: %+v", pending)
	}

	publisher := &recordingPublisher{}
	relay.Publisher = publisher
	if err := relay.RunOnce(h.ctx); err != nil {
		t.Fatalf("relay: %v", err)
	}
	if len(publisher.topics) != 2 || publisher.topics[0] != commands.EventCampaignCancelled {
		t.Fatalf("unexpected topics: %v", publisher.topics)
	}
	if pending, _ := h.store.ListPendingOutbox(h.ctx, 0); len(pending) != 0 {
		t.Fatalf("outbox must be drained: %+v", pending)
	}
}

func TestDonationConsumerCreatesMilestoneRequest(t *testing.T) {
	h := newHarness()
	subscriber := &capturingSubscriber{}
	consumer := DonationConsumer{
		Subscriber: subscriber,
		Dedup:      h.store,
		Requests:   h.requests,
		Clock:      h.store,
	}
	if err := consumer.Start(h.ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if subscriber.topic != "donation.completed" || subscriber.group != defaultDonationCG {
		t.Fatalf("unexpected subscription: %s %s", subscriber.topic, subscriber.group)
	}

	h.donate("a", 60000)
	event, _ := events.New("evt-1", "donation.completed", "donation-service", "campaign_id", "camp-1", h.now, map[string]any{
		"campaign_id": "camp-1",
		"donation_id": "a",
	})
	if err := subscriber.handler(h.ctx, event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	requests, _ := h.store.ListRequestsByCampaign(h.ctx, "camp-1")
	if len(requests) != 1 || !requests[0].AutoCreated || requests[0].MilestonePercentage != 50 || requests[0].Amount != 50000 {
		t.Fatalf("expected 50%% milestone request, got %+v", requests)
	}

	if err := subscriber.handler(h.ctx, event); err != nil {
		t.Fatalf("replay must be skipped, got %v", err)
	}
	tampered := event
	tampered.Data = json.RawMessage(`{"campaign_id":"camp-2"}`)
	if err := subscriber.handler(h.ctx, tampered); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("reused event id with new payload must conflict, got %v", err)
	}
}

func TestDonationConsumerDisabled(t *testing.T) {
	subscriber := &capturingSubscriber{}
	consumer := DonationConsumer{Subscriber: subscriber, Disabled: true}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if subscriber.handler != nil {
		t.Fatalf("disabled consumer must not subscribe")
	}
}

func TestReleaseRetrierCompletesApprovedRequests(t *testing.T) {
	h := newHarness()
	h.donate("a", 50000)
	h.store.SetRequest(entities.WithdrawalRequest{
		RequestID:   "req-1",
		CampaignID:  "camp-1",
		RequestedBy: "creator-1",
		Amount:      20000,
		Status:      entities.RequestStatusAdminApproved,
		CreatedAt:   h.now,
		UpdatedAt:   h.now,
	})
	h.gateway.FailTransiently(entities.ReleaseIdempotencyKey("req-1"), 1)
	retrier := ReleaseRetrier{Requests: h.store, Disbursements: h.disbursements, Clock: h.store}

	if err := retrier.RunOnce(h.ctx); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if request, _ := h.store.GetRequest(h.ctx, "req-1"); request.Status != entities.RequestStatusAdminApproved {
		t.Fatalf("failed cycle must leave request approved, got %s", request.Status)
	}
	if err := retrier.RunOnce(h.ctx); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	request, _ := h.store.GetRequest(h.ctx, "req-1")
	if request.Status != entities.RequestStatusReleased {
		t.Fatalf("expected released, got %s", request.Status)
	}
	campaign, _ := h.store.GetCampaign(h.ctx, "camp-1")
	if campaign.CurrentAmount != 30000 {
		t.Fatalf("expected balance 30000, got %d", campaign.CurrentAmount)
	}
}

func TestRefundRetrierRedispatchesFailedCases(t *testing.T) {
	h := newHarness()
	h.donate("a", 8000)
	if err := h.store.CreateRefundCases(h.ctx, []entities.RefundCase{{
		CaseID:         "case-1",
		CampaignID:     "camp-1",
		DonorID:        "donor-a",
		DonationID:     "a",
		OriginalAmount: 8000,
		RefundedAmount: 8000,
		RefundRatio:    decimal.NewFromInt(1),
		Status:         entities.RefundStatusFailed,
		Method:         entities.RefundMethodEscrow,
		Attempts:       1,
	}}, nil); err != nil {
		t.Fatalf("seed refund case: %v", err)
	}

	retrier := RefundRetrier{Refunds: h.refunds}
	if err := retrier.RunOnce(h.ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	item, _ := h.store.GetRefundCase(h.ctx, "case-1")
	if item.Status != entities.RefundStatusCompleted || item.Attempts != 2 {
		t.Fatalf("unexpected case after retry: %+v", item)
	}
	if donation, _ := h.store.GetDonation("a"); donation.Status != entities.DonationStatusRefunded {
		t.Fatalf("expected donation refunded, got %s", donation.Status)
	}
}
