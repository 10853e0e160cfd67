package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "fundgate/contexts/donor-governance/withdrawal-escrow/application"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/services"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"

	"github.com/shopspring/decimal"
)

// CloseVotingUseCase applies the window-close decision. It is safe to call
// from the sweeper and from read paths at the same time: only the caller
// that wins the locked transition emits voting_ended.
type CloseVotingUseCase struct {
	Requests              ports.RequestRepository
	Clock                 ports.Clock
	IDGen                 ports.IDGenerator
	ApprovalThreshold     decimal.Decimal
	ForwardBelowThreshold bool
	Logger                *slog.Logger
}

// CloseVotingResult is the request after its window closed, with the final tally.
type CloseVotingResult struct {
	Request entities.WithdrawalRequest
	Tally   entities.Tally
	Closed  bool
}

func (uc CloseVotingUseCase) CloseIfDue(ctx context.Context, requestID string) (CloseVotingResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	requestID = strings.TrimSpace(requestID)
	now := uc.now()

	// Event ids are drawn up front so the decider stays free of I/O while
	// the request row is locked.
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CloseVotingResult{}, err
	}

	var tally entities.Tally
	decide := func(request entities.WithdrawalRequest, votes []entities.Vote) (entities.WithdrawalRequest, []ports.EventEnvelope, error) {
		tally = services.ComputeTally(request.RequestID, votes)
		next := request
		next.Status = services.DecideOutcome(tally, uc.threshold(), uc.ForwardBelowThreshold)
		next.UpdatedAt = now
		envelope, err := newEscrowEnvelope(eventID, EventRequestVotingEnded, request.CampaignID, now, map[string]any{
			"request_id":         request.RequestID,
			"campaign_id":        request.CampaignID,
			"outcome":            string(next.Status),
			"approve_weight":     tally.ApproveWeight,
			"reject_weight":      tally.RejectWeight,
			"approve_votes":      tally.ApproveVotes,
			"reject_votes":       tally.RejectVotes,
			"approve_percentage": tally.ApprovePercentage.String(),
			"threshold":          uc.threshold().String(),
			"voting_end_date":    formatOptionalTime(request.VotingEndDate),
		})
		if err != nil {
			return entities.WithdrawalRequest{}, nil, err
		}
		return next, []ports.EventEnvelope{envelope}, nil
	}

	request, closed, err := uc.Requests.CloseVotingWindow(ctx, requestID, now, decide)
	if err != nil {
		logger.Error("voting window close failed",
			"event", "escrow_voting_close_failed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "application",
			"request_id", requestID,
			"error", err.Error(),
		)
		return CloseVotingResult{}, err
	}
	if !closed {
		return CloseVotingResult{Request: request}, nil
	}

	logger.Info("voting window closed",
		"event", "escrow_voting_closed",
		"module", "donor-governance/withdrawal-escrow",
		"layer", "application",
		"request_id", request.RequestID,
		"campaign_id", request.CampaignID,
		"outcome", string(request.Status),
		"approve_percentage", tally.ApprovePercentage.String(),
	)
	return CloseVotingResult{Request: request, Tally: tally, Closed: true}, nil
}

func (uc CloseVotingUseCase) threshold() decimal.Decimal {
	if uc.ApprovalThreshold.IsZero() {
		return services.DefaultApprovalThreshold
	}
	return uc.ApprovalThreshold
}

func (uc CloseVotingUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
