package queries

import (
	"context"
	"strings"
	"time"

	"fundgate/contexts/donor-governance/withdrawal-escrow/application/commands"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/services"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"

	"github.com/shopspring/decimal"
)

// RequestQueryUseCase serves reads. Expired windows are closed before they
// are returned so readers never see a stale voting_in_progress.
type RequestQueryUseCase struct {
	Requests  ports.RequestRepository
	Votes     ports.VoteRepository
	Refunds   ports.RefundRepository
	Closer    commands.CloseVotingUseCase
	Clock     ports.Clock
	Threshold decimal.Decimal
}

type TallyView struct {
	Request      entities.WithdrawalRequest
	Tally        entities.Tally
	Threshold    decimal.Decimal
	WindowClosed bool
}

func (uc RequestQueryUseCase) GetRequest(ctx context.Context, requestID string) (entities.WithdrawalRequest, error) {
	request, err := uc.Requests.GetRequest(ctx, strings.TrimSpace(requestID))
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	return uc.settle(ctx, request)
}

func (uc RequestQueryUseCase) ListByCampaign(ctx context.Context, campaignID string) ([]entities.WithdrawalRequest, error) {
	requests, err := uc.Requests.ListRequestsByCampaign(ctx, strings.TrimSpace(campaignID))
	if err != nil {
		return nil, err
	}
	for i := range requests {
		if requests[i], err = uc.settle(ctx, requests[i]); err != nil {
			return nil, err
		}
	}
	return requests, nil
}

func (uc RequestQueryUseCase) Tally(ctx context.Context, requestID string) (TallyView, error) {
	request, err := uc.GetRequest(ctx, requestID)
	if err != nil {
		return TallyView{}, err
	}
	votes, err := uc.Votes.ListVotesByRequest(ctx, request.RequestID)
	if err != nil {
		return TallyView{}, err
	}
	threshold := uc.Threshold
	if threshold.IsZero() {
		threshold = services.DefaultApprovalThreshold
	}
	return TallyView{
		Request:      request,
		Tally:        services.ComputeTally(request.RequestID, votes),
		Threshold:    threshold,
		WindowClosed: request.Status != entities.RequestStatusPendingVoting && !request.AcceptsVotesAt(uc.now()),
	}, nil
}

func (uc RequestQueryUseCase) ListRefundCases(ctx context.Context, campaignID string) ([]entities.RefundCase, error) {
	return uc.Refunds.ListRefundCasesByCampaign(ctx, strings.TrimSpace(campaignID))
}

func (uc RequestQueryUseCase) settle(ctx context.Context, request entities.WithdrawalRequest) (entities.WithdrawalRequest, error) {
	if !request.VotingDue(uc.now()) {
		return request, nil
	}
	result, err := uc.Closer.CloseIfDue(ctx, request.RequestID)
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	if result.Request.RequestID == "" {
		return uc.Requests.GetRequest(ctx, request.RequestID)
	}
	return result.Request, nil
}

func (uc RequestQueryUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
