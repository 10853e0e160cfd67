package commands

import (
	"context"
	"testing"
	"time"

	"fundgate/contexts/donor-governance/withdrawal-escrow/adapters/memory"
	paymentadapter "fundgate/contexts/donor-governance/withdrawal-escrow/adapters/payment"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"

	"github.com/shopspring/decimal"
)

var adminActor = Actor{UserID: "admin-1", Role: RoleAdmin}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *memory.Store
	gateway *paymentadapter.SandboxGateway
	now     time.Time

	requests      RequestUseCase
	voting        VotingUseCase
	votes         VoteUseCase
	closer        CloseVotingUseCase
	disbursements DisbursementUseCase
	refunds       RefundUseCase
	review        AdminReviewUseCase
	webhooks      PaymentWebhookUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		store:   memory.NewStore(),
		gateway: paymentadapter.NewSandboxGateway(),
		now:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.store.SetClock(func() time.Time { return f.now })
	f.wire(false)
	return f
}

// wire rebuilds the use cases; call it again after changing settings.
func (f *fixture) wire(forwardBelowThreshold bool) {
	retry := RetryPolicy{Attempts: 3}
	f.requests = RequestUseCase{
		Requests:             f.store,
		Campaigns:            f.store,
		Idempotency:          f.store,
		Clock:                f.store,
		IDGen:                f.store,
		VotingStartDelay:     24 * time.Hour,
		MilestonePercentages: []int{25, 50, 75, 100},
	}
	f.voting = VotingUseCase{
		Requests:       f.store,
		Clock:          f.store,
		IDGen:          f.store,
		VotingDuration: 72 * time.Hour,
	}
	f.closer = CloseVotingUseCase{
		Requests:              f.store,
		Clock:                 f.store,
		IDGen:                 f.store,
		ApprovalThreshold:     decimal.NewFromInt(50),
		ForwardBelowThreshold: forwardBelowThreshold,
	}
	f.votes = VoteUseCase{
		Requests:  f.store,
		Votes:     f.store,
		Donations: f.store,
		Closer:    f.closer,
		Clock:     f.store,
		IDGen:     f.store,
	}
	f.disbursements = DisbursementUseCase{
		Requests:      f.store,
		Disbursements: f.store,
		Campaigns:     f.store,
		Gateway:       f.gateway,
		Retry:         retry,
		Clock:         f.store,
		IDGen:         f.store,
	}
	f.refunds = RefundUseCase{
		Refunds:   f.store,
		Campaigns: f.store,
		Donations: f.store,
		Gateway:   f.gateway,
		Retry:     retry,
		Clock:     f.store,
		IDGen:     f.store,
		PoolSize:  4,
	}
	f.review = AdminReviewUseCase{
		Requests:      f.store,
		Campaigns:     f.store,
		Outbox:        f.store,
		Disbursements: f.disbursements,
		Refunds:       f.refunds,
		Clock:         f.store,
		IDGen:         f.store,
	}
	f.webhooks = PaymentWebhookUseCase{
		Disbursements: f.disbursements,
		Refunds:       f.refunds,
	}
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) seedCampaign(campaignID string, goal int64) {
	f.store.SetCampaign(entities.Campaign{
		CampaignID: campaignID,
		CreatorID:  "creator-1",
		GoalAmount: goal,
		Status:     entities.CampaignStatusActive,
	})
}

func (f *fixture) donate(donationID string, campaignID string, donorID string, amount int64) {
	f.store.AddDonation(entities.DonationRecord{
		DonationID: donationID,
		CampaignID: campaignID,
		DonorID:    donorID,
		Amount:     amount,
		Status:     entities.DonationStatusCompleted,
		CreatedAt:  f.now,
	})
}

func (f *fixture) createRequest(campaignID string, amount int64) entities.WithdrawalRequest {
	f.t.Helper()
	result, err := f.requests.CreateRequest(f.ctx, CreateRequestCommand{
		CampaignID:  campaignID,
		RequestedBy: "creator-1",
		Amount:      amount,
		Reason:      "Studio rental for the next recording session",
	})
	if err != nil {
		f.t.Fatalf("create request: %v", err)
	}
	return result.Request
}

// openVoting creates a request and starts its window.
func (f *fixture) openVoting(campaignID string, amount int64) entities.WithdrawalRequest {
	f.t.Helper()
	request := f.createRequest(campaignID, amount)
	started, err := f.voting.StartVoting(f.ctx, StartVotingCommand{RequestID: request.RequestID, Actor: adminActor})
	if err != nil {
		f.t.Fatalf("start voting: %v", err)
	}
	return started
}

func (f *fixture) vote(requestID string, donorID string, value entities.VoteValue) entities.Vote {
	f.t.Helper()
	vote, err := f.votes.CastVote(f.ctx, CastVoteCommand{RequestID: requestID, DonorID: donorID, Value: value})
	if err != nil {
		f.t.Fatalf("cast vote for %s: %v", donorID, err)
	}
	return vote
}

// passVote runs a window that donor-a approves and closes it.
func (f *fixture) passVote(campaignID string, amount int64) entities.WithdrawalRequest {
	f.t.Helper()
	request := f.openVoting(campaignID, amount)
	f.vote(request.RequestID, "donor-a", entities.VoteValueApprove)
	f.advance(72 * time.Hour)
	result, err := f.closer.CloseIfDue(f.ctx, request.RequestID)
	if err != nil {
		f.t.Fatalf("close voting: %v", err)
	}
	if result.Request.Status != entities.RequestStatusVotingCompleted {
		f.t.Fatalf("expected voting_completed, got %s", result.Request.Status)
	}
	return result.Request
}

func (f *fixture) request(requestID string) entities.WithdrawalRequest {
	f.t.Helper()
	request, err := f.store.GetRequest(f.ctx, requestID)
	if err != nil {
		f.t.Fatalf("get request: %v", err)
	}
	return request
}

func (f *fixture) campaign(campaignID string) entities.Campaign {
	f.t.Helper()
	campaign, err := f.store.GetCampaign(f.ctx, campaignID)
	if err != nil {
		f.t.Fatalf("get campaign: %v", err)
	}
	return campaign
}

func (f *fixture) countOutbox(eventType string) int {
	f.t.Helper()
	pending, err := f.store.ListPendingOutbox(f.ctx, 0)
	if err != nil {
		f.t.Fatalf("list outbox: %v", err)
	}
	count := 0
	for _, message := range pending {
		if message.EventType == eventType {
			count++
		}
	}
	return count
}
