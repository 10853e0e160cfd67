package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "fundgate/contexts/donor-governance/withdrawal-escrow/application"
	"fundgate/contexts/donor-governance/withdrawal-escrow/application/commands"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
)

// VotingWindowSweeper opens scheduled windows and closes expired ones. It can
// run on several workers at once; the status compare-and-swap lets exactly
// one of them apply each transition.
type VotingWindowSweeper struct {
	Requests  ports.RequestRepository
	Voting    commands.VotingUseCase
	Closer    commands.CloseVotingUseCase
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

type SweepResult struct {
	Started int
	Closed  int
}

func (s VotingWindowSweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	logger := application.ResolveLogger(s.Logger)
	limit := s.BatchSize
	if limit <= 0 {
		limit = 100
	}
	now := s.now()
	var result SweepResult

	due, err := s.Requests.ListDueRequests(ctx, entities.RequestStatusPendingVoting, now, limit)
	if err != nil {
		return result, err
	}
	for _, request := range due {
		if _, err := s.Voting.StartVoting(ctx, commands.StartVotingCommand{
			RequestID: request.RequestID,
			Actor:     commands.SystemActor,
		}); err != nil {
			if errors.Is(err, domainerrors.ErrIllegalTransition) {
				continue
			}
			logger.Error("voting window start failed",
				"event", "escrow_sweeper_start_failed",
				"module", "donor-governance/withdrawal-escrow",
				"layer", "worker",
				"request_id", request.RequestID,
				"error", err.Error(),
			)
			return result, err
		}
		result.Started++
	}

	expired, err := s.Requests.ListDueRequests(ctx, entities.RequestStatusVotingInProgress, now, limit)
	if err != nil {
		return result, err
	}
	for _, request := range expired {
		closed, err := s.Closer.CloseIfDue(ctx, request.RequestID)
		if err != nil {
			return result, err
		}
		if closed.Closed {
			result.Closed++
		}
	}

	if result.Started > 0 || result.Closed > 0 {
		logger.Info("voting window sweep completed",
			"event", "escrow_sweeper_completed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "worker",
			"started", result.Started,
			"closed", result.Closed,
		)
	}
	return result, nil
}

func (s VotingWindowSweeper) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
