package commands

import (
	"errors"
	"testing"
	"time"

	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
)

func TestCreateRequestOpensPendingVoting(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	f.donate("don-a", "camp-1", "donor-a", 40000)

	request := f.createRequest("camp-1", 25000)
	if request.Status != entities.RequestStatusPendingVoting {
		t.Fatalf("expected pending_voting, got %s", request.Status)
	}
	if !request.VotingStartDate.Equal(f.now.Add(24 * time.Hour)) {
		t.Fatalf("expected scheduled start one day out, got %s", request.VotingStartDate)
	}
	if request.VotingEndDate != nil || request.AutoCreated {
		t.Fatalf("unexpected request fields: %+v", request)
	}
	if f.countOutbox(EventRequestCreated) != 1 {
		t.Fatalf("expected one created event in the outbox")
	}
}

func TestCreateRequestValidation(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	f.donate("don-a", "camp-1", "donor-a", 40000)
	f.store.SetCampaign(entities.Campaign{
		CampaignID: "camp-draft",
		CreatorID:  "creator-1",
		GoalAmount: 1000,
		Status:     entities.CampaignStatusDraft,
	})

	valid := "Studio rental for the next recording session"
	cases := []struct {
		name string
		cmd  CreateRequestCommand
		want error
	}{
		{
			name: "amount above balance",
			cmd:  CreateRequestCommand{CampaignID: "camp-1", RequestedBy: "creator-1", Amount: 40001, Reason: valid},
			want: domainerrors.ErrAmountExceedsAvailable,
		},
		{
			name: "short reason",
			cmd:  CreateRequestCommand{CampaignID: "camp-1", RequestedBy: "creator-1", Amount: 100, Reason: "rent"},
			want: domainerrors.ErrReasonTooShort,
		},
		{
			name: "zero amount",
			cmd:  CreateRequestCommand{CampaignID: "camp-1", RequestedBy: "creator-1", Amount: 0, Reason: valid},
			want: domainerrors.ErrInvalidInput,
		},
		{
			name: "not the creator",
			cmd:  CreateRequestCommand{CampaignID: "camp-1", RequestedBy: "donor-a", Amount: 100, Reason: valid},
			want: domainerrors.ErrForbidden,
		},
		{
			name: "unknown campaign",
			cmd:  CreateRequestCommand{CampaignID: "camp-x", RequestedBy: "creator-1", Amount: 100, Reason: valid},
			want: domainerrors.ErrCampaignNotFound,
		},
		{
			name: "campaign not active",
			cmd:  CreateRequestCommand{CampaignID: "camp-draft", RequestedBy: "creator-1", Amount: 100, Reason: valid},
			want: domainerrors.ErrCampaignNotActive,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.requests.CreateRequest(f.ctx, tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateRequestOneActivePerCampaign(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	f.donate("don-a", "camp-1", "donor-a", 40000)

	first := f.createRequest("camp-1", 1000)
	_, err := f.requests.CreateRequest(f.ctx, CreateRequestCommand{
		CampaignID:  "camp-1",
		RequestedBy: "creator-1",
		Amount:      1000,
		Reason:      "A second request for the same campaign",
	})
	if !errors.Is(err, domainerrors.ErrPendingRequestExists) {
		t.Fatalf("expected pending request conflict, got %v", err)
	}

	first.Status = entities.RequestStatusCancelled
	f.store.SetRequest(first)
	if second := f.createRequest("camp-1", 1000); second.RequestID == first.RequestID {
		t.Fatalf("expected a new request once the first is terminal")
	}
}

func TestCreateRequestIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	f.donate("don-a", "camp-1", "donor-a", 40000)

	cmd := CreateRequestCommand{
		CampaignID:     "camp-1",
		RequestedBy:    "creator-1",
		Amount:         5000,
		Reason:         "Printing costs for the backer rewards",
		IdempotencyKey: "idem-1",
	}
	first, err := f.requests.CreateRequest(f.ctx, cmd)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := f.requests.CreateRequest(f.ctx, cmd)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !second.Replayed || second.Request.RequestID != first.Request.RequestID {
		t.Fatalf("expected replay of %s, got %+v", first.Request.RequestID, second)
	}

	cmd.Amount = 6000
	if _, err := f.requests.CreateRequest(f.ctx, cmd); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestEvaluateMilestonesCreatesAutomaticRequest(t *testing.T) {
	f := newFixture(t)
	f.requests.MilestonePercentages = []int{50}
	f.seedCampaign("camp-1", 10000000)
	f.donate("don-a", "camp-1", "donor-a", 4900000)

	if _, created, err := f.requests.EvaluateMilestones(f.ctx, "camp-1"); err != nil || created {
		t.Fatalf("expected no request below the milestone, created=%v err=%v", created, err)
	}

	f.donate("don-b", "camp-1", "donor-b", 200000)
	request, created, err := f.requests.EvaluateMilestones(f.ctx, "camp-1")
	if err != nil || !created {
		t.Fatalf("expected milestone request, created=%v err=%v", created, err)
	}
	if !request.AutoCreated || request.MilestonePercentage != 50 {
		t.Fatalf("unexpected milestone fields: %+v", request)
	}
	if request.Amount != 5000000 || request.Status != entities.RequestStatusPendingVoting {
		t.Fatalf("unexpected milestone request: %+v", request)
	}

	if _, created, err := f.requests.EvaluateMilestones(f.ctx, "camp-1"); err != nil || created {
		t.Fatalf("milestone must trigger once, created=%v err=%v", created, err)
	}
}

func TestEvaluateMilestonesDeferredByActiveRequest(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign("camp-1", 100000)
	f.donate("don-a", "camp-1", "donor-a", 10000)
	manual := f.createRequest("camp-1", 1000)

	f.donate("don-b", "camp-1", "donor-b", 20000)
	if _, created, err := f.requests.EvaluateMilestones(f.ctx, "camp-1"); err != nil || created {
		t.Fatalf("expected deferral while %s is active, created=%v err=%v", manual.RequestID, created, err)
	}

	manual.Status = entities.RequestStatusCancelled
	f.store.SetRequest(manual)
	request, created, err := f.requests.EvaluateMilestones(f.ctx, "camp-1")
	if err != nil || !created {
		t.Fatalf("expected deferred milestone to fire, created=%v err=%v", created, err)
	}
	if request.MilestonePercentage != 25 || request.Amount != 25000 {
		t.Fatalf("unexpected milestone request: %+v", request)
	}
}
