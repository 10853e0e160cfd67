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

// VotingUseCase opens and extends donor voting windows.
type VotingUseCase struct {
	Requests       ports.RequestRepository
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	VotingDuration time.Duration
	Logger         *slog.Logger
}

// StartVotingCommand opens the voting window for a draft request.
type StartVotingCommand struct {
	RequestID string
	Actor     Actor
}

// ExtendVotingCommand pushes an open window's deadline out.
type ExtendVotingCommand struct {
	RequestID  string
	Actor      Actor
	NewEndDate time.Time
}

func (uc VotingUseCase) StartVoting(ctx context.Context, cmd StartVotingCommand) (entities.WithdrawalRequest, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Actor.IsAdmin() && !cmd.Actor.IsSystem() {
		return entities.WithdrawalRequest{}, domainerrors.ErrForbidden
	}
	request, err := uc.Requests.GetRequest(ctx, strings.TrimSpace(cmd.RequestID))
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	if !entities.CanTransition(request.Status, entities.RequestStatusVotingInProgress) {
		return entities.WithdrawalRequest{}, domainerrors.ErrIllegalTransition
	}

	now := uc.now()
	end := now.Add(uc.resolveVotingDuration())
	next := request
	next.Status = entities.RequestStatusVotingInProgress
	next.VotingStartDate = now
	next.VotingEndDate = &end
	next.UpdatedAt = now

	envelope, err := uc.envelope(ctx, EventRequestVotingStarted, next, now, map[string]any{
		"started_by": cmd.Actor.UserID,
	})
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	swapped, err := uc.Requests.TransitionRequest(ctx, request.Status, next, envelope)
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	if !swapped {
		return entities.WithdrawalRequest{}, domainerrors.ErrIllegalTransition
	}

	logger.Info("voting window started",
		"event", "escrow_voting_started",
		"module", "donor-governance/withdrawal-escrow",
		"layer", "application",
		"request_id", next.RequestID,
		"campaign_id", next.CampaignID,
		"voting_end_date", end.Format(time.RFC3339),
	)
	return next, nil
}

// ExtendVoting moves the end of an open window later. Votes already cast are
// kept as they are.
func (uc VotingUseCase) ExtendVoting(ctx context.Context, cmd ExtendVotingCommand) (entities.WithdrawalRequest, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Actor.IsAdmin() {
		return entities.WithdrawalRequest{}, domainerrors.ErrForbidden
	}
	request, err := uc.Requests.GetRequest(ctx, strings.TrimSpace(cmd.RequestID))
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	if request.Status != entities.RequestStatusVotingInProgress || request.VotingEndDate == nil {
		return entities.WithdrawalRequest{}, domainerrors.ErrIllegalTransition
	}

	now := uc.now()
	if !request.AcceptsVotesAt(now) {
		return entities.WithdrawalRequest{}, domainerrors.ErrVotingWindowClosed
	}
	newEnd := cmd.NewEndDate.UTC()
	if !newEnd.After(request.VotingEndDate.UTC()) {
		return entities.WithdrawalRequest{}, domainerrors.ErrInvalidInput
	}

	previousEnd := *request.VotingEndDate
	next := request
	next.VotingEndDate = &newEnd
	next.UpdatedAt = now
	envelope, err := uc.envelope(ctx, EventRequestVotingExtended, next, now, map[string]any{
		"previous_end_date": previousEnd.UTC().Format(time.RFC3339Nano),
		"extended_by":       cmd.Actor.UserID,
	})
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	swapped, err := uc.Requests.TransitionRequest(ctx, entities.RequestStatusVotingInProgress, next, envelope)
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	if !swapped {
		return entities.WithdrawalRequest{}, domainerrors.ErrIllegalTransition
	}

	logger.Info("voting window extended",
		"event", "escrow_voting_extended",
		"module", "donor-governance/withdrawal-escrow",
		"layer", "application",
		"request_id", next.RequestID,
		"previous_end_date", previousEnd.UTC().Format(time.RFC3339),
		"voting_end_date", newEnd.Format(time.RFC3339),
	)
	return next, nil
}

func (uc VotingUseCase) envelope(
	ctx context.Context,
	eventType string,
	request entities.WithdrawalRequest,
	now time.Time,
	extra map[string]any,
) (ports.EventEnvelope, error) {
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	data := map[string]any{
		"request_id":        request.RequestID,
		"campaign_id":       request.CampaignID,
		"status":            string(request.Status),
		"voting_start_date": request.VotingStartDate.UTC().Format(time.RFC3339Nano),
		"voting_end_date":   formatOptionalTime(request.VotingEndDate),
	}
	for key, value := range extra {
		data[key] = value
	}
	return newEscrowEnvelope(eventID, eventType, request.CampaignID, now, data)
}

func (uc VotingUseCase) resolveVotingDuration() time.Duration {
	if uc.VotingDuration <= 0 {
		return 72 * time.Hour
	}
	return uc.VotingDuration
}

func (uc VotingUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
