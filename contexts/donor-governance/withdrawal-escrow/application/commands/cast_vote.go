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

// VoteUseCase records donor votes while a request's window is open.
type VoteUseCase struct {
	Requests  ports.RequestRepository
	Votes     ports.VoteRepository
	Donations ports.DonationLedger
	Closer    CloseVotingUseCase
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// CastVoteCommand is the write-model input for a single donor vote.
type CastVoteCommand struct {
	RequestID string
	DonorID   string
	Value     entities.VoteValue
}

// CastVote records or replaces the donor's vote. The weight is the donor's
// completed donation total right now; later donations do not change it
// unless the donor votes again.
func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (entities.Vote, error) {
	logger := application.ResolveLogger(uc.Logger)
	cmd.RequestID = strings.TrimSpace(cmd.RequestID)
	cmd.DonorID = strings.TrimSpace(cmd.DonorID)
	if cmd.RequestID == "" || cmd.DonorID == "" {
		return entities.Vote{}, domainerrors.ErrInvalidInput
	}
	if !cmd.Value.IsValid() {
		return entities.Vote{}, domainerrors.ErrInvalidVoteValue
	}

	request, err := uc.Requests.GetRequest(ctx, cmd.RequestID)
	if err != nil {
		return entities.Vote{}, err
	}
	now := uc.now()
	if !request.AcceptsVotesAt(now) {
		return entities.Vote{}, uc.rejectLateOrEarly(ctx, request, now)
	}

	weight, err := uc.Donations.CumulativeCompletedAmount(ctx, request.CampaignID, cmd.DonorID)
	if err != nil {
		return entities.Vote{}, err
	}
	if weight <= 0 {
		logger.Warn("vote rejected for non-donor",
			"event", "escrow_vote_not_eligible",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "application",
			"request_id", request.RequestID,
			"donor_id", cmd.DonorID,
		)
		return entities.Vote{}, domainerrors.ErrNotEligibleToVote
	}

	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Vote{}, err
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Vote{}, err
	}
	vote := entities.Vote{
		VoteID:     voteID,
		RequestID:  request.RequestID,
		CampaignID: request.CampaignID,
		DonorID:    cmd.DonorID,
		Value:      cmd.Value,
		Weight:     weight,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	envelope, err := newEscrowEnvelope(eventID, EventVoteCast, request.CampaignID, now, map[string]any{
		"request_id":  request.RequestID,
		"campaign_id": request.CampaignID,
		"donor_id":    cmd.DonorID,
		"value":       string(cmd.Value),
		"weight":      weight,
		"cast_at":     now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return entities.Vote{}, err
	}

	stored, err := uc.Votes.UpsertVote(ctx, vote, now, envelope)
	if err != nil {
		return entities.Vote{}, err
	}
	logger.Info("vote cast",
		"event", "escrow_vote_cast",
		"module", "donor-governance/withdrawal-escrow",
		"layer", "application",
		"request_id", stored.RequestID,
		"vote_id", stored.VoteID,
		"donor_id", stored.DonorID,
		"value", string(stored.Value),
		"weight", stored.Weight,
	)
	return stored, nil
}

// rejectLateOrEarly picks the error for a vote outside an open window and
// closes an expired window on the way out.
func (uc VoteUseCase) rejectLateOrEarly(ctx context.Context, request entities.WithdrawalRequest, now time.Time) error {
	if request.VotingDue(now) {
		if _, err := uc.Closer.CloseIfDue(ctx, request.RequestID); err != nil {
			application.ResolveLogger(uc.Logger).Warn("lazy voting close failed",
				"event", "escrow_vote_lazy_close_failed",
				"module", "donor-governance/withdrawal-escrow",
				"layer", "application",
				"request_id", request.RequestID,
				"error", err.Error(),
			)
		}
		return domainerrors.ErrVotingWindowClosed
	}
	if request.VotingEndDate != nil && !now.Before(request.VotingEndDate.UTC()) {
		return domainerrors.ErrVotingWindowClosed
	}
	return domainerrors.ErrIllegalTransition
}

func (uc VoteUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
