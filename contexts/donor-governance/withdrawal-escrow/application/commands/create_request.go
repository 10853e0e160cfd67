package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	application "fundgate/contexts/donor-governance/withdrawal-escrow/application"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
)

// RequestUseCase drafts withdrawal requests against a campaign's escrowed balance.
type RequestUseCase struct {
	Requests             ports.RequestRepository
	Campaigns            ports.CampaignLedger
	Idempotency          ports.IdempotencyStore
	Clock                ports.Clock
	IDGen                ports.IDGenerator
	VotingStartDelay     time.Duration
	MilestonePercentages []int
	IdempotencyTTL       time.Duration
	Logger               *slog.Logger
}

// CreateRequestCommand is the write-model input for a new withdrawal request.
type CreateRequestCommand struct {
	CampaignID     string
	RequestedBy    string
	Amount         int64
	Reason         string
	IdempotencyKey string
}

// CreateRequestResult is the stored request; Replayed marks an idempotent repeat.
type CreateRequestResult struct {
	Request  entities.WithdrawalRequest
	Replayed bool
}

// CreateRequest opens a creator withdrawal request in pending_voting. The
// one-active-request rule is enforced again by storage, so a concurrent
// create loses with ErrPendingRequestExists.
func (uc RequestUseCase) CreateRequest(ctx context.Context, cmd CreateRequestCommand) (CreateRequestResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	cmd.CampaignID = strings.TrimSpace(cmd.CampaignID)
	cmd.RequestedBy = strings.TrimSpace(cmd.RequestedBy)
	cmd.IdempotencyKey = strings.TrimSpace(cmd.IdempotencyKey)
	if cmd.CampaignID == "" || cmd.RequestedBy == "" || cmd.Amount <= 0 {
		logger.Warn("withdrawal request validation failed",
			"event", "escrow_request_create_validation_failed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "application",
			"campaign_id", cmd.CampaignID,
			"requested_by", cmd.RequestedBy,
			"amount", cmd.Amount,
		)
		return CreateRequestResult{}, domainerrors.ErrInvalidInput
	}
	if !entities.ValidReason(cmd.Reason) {
		return CreateRequestResult{}, domainerrors.ErrReasonTooShort
	}

	now := uc.now()
	requestHash := hashCreateRequestCommand(cmd)
	if cmd.IdempotencyKey != "" {
		record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now)
		if err != nil {
			return CreateRequestResult{}, err
		}
		if found {
			if record.RequestHash != requestHash {
				logger.Warn("withdrawal request idempotency conflict",
					"event", "escrow_request_create_idempotency_conflict",
					"module", "donor-governance/withdrawal-escrow",
					"layer", "application",
					"campaign_id", cmd.CampaignID,
				)
				return CreateRequestResult{}, domainerrors.ErrIdempotencyConflict
			}
			request, err := uc.Requests.GetRequest(ctx, record.RequestID)
			if err != nil {
				return CreateRequestResult{}, err
			}
			return CreateRequestResult{Request: request, Replayed: true}, nil
		}
	}

	campaign, err := uc.Campaigns.GetCampaign(ctx, cmd.CampaignID)
	if err != nil {
		return CreateRequestResult{}, err
	}
	if campaign.CreatorID != cmd.RequestedBy {
		return CreateRequestResult{}, domainerrors.ErrForbidden
	}

	request, err := uc.open(ctx, campaign, draftRequest{
		requestedBy: cmd.RequestedBy,
		amount:      cmd.Amount,
		reason:      strings.TrimSpace(cmd.Reason),
	}, now)
	if err != nil {
		return CreateRequestResult{}, err
	}

	if cmd.IdempotencyKey != "" {
		if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
			Key:         cmd.IdempotencyKey,
			RequestHash: requestHash,
			RequestID:   request.RequestID,
			ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
		}); err != nil {
			return CreateRequestResult{}, err
		}
	}
	return CreateRequestResult{Request: request}, nil
}

// EvaluateMilestones opens an automatic request for the lowest configured
// milestone the campaign has reached and not yet triggered. It returns false
// when nothing was created; a milestone blocked by an active request is
// picked up again on the next evaluation.
func (uc RequestUseCase) EvaluateMilestones(ctx context.Context, campaignID string) (entities.WithdrawalRequest, bool, error) {
	logger := application.ResolveLogger(uc.Logger)
	campaign, err := uc.Campaigns.GetCampaign(ctx, strings.TrimSpace(campaignID))
	if err != nil {
		return entities.WithdrawalRequest{}, false, err
	}
	if campaign.Status != entities.CampaignStatusActive || campaign.GoalAmount <= 0 {
		return entities.WithdrawalRequest{}, false, nil
	}

	released, err := uc.Requests.SumRequestedAmount(ctx, campaign.CampaignID,
		[]entities.RequestStatus{entities.RequestStatusReleased})
	if err != nil {
		return entities.WithdrawalRequest{}, false, err
	}
	committed, err := uc.Requests.SumRequestedAmount(ctx, campaign.CampaignID, entities.ActiveStatuses())
	if err != nil {
		return entities.WithdrawalRequest{}, false, err
	}
	raised := campaign.CurrentAmount + released

	for _, pct := range uc.milestones() {
		threshold := campaign.MilestoneThreshold(pct)
		if raised < threshold {
			break
		}
		triggered, err := uc.Requests.HasMilestoneRequest(ctx, campaign.CampaignID, pct)
		if err != nil {
			return entities.WithdrawalRequest{}, false, err
		}
		if triggered {
			continue
		}
		amount := threshold - released - committed
		if available := campaign.CurrentAmount - committed; amount > available {
			amount = available
		}
		if amount <= 0 {
			continue
		}

		request, err := uc.open(ctx, campaign, draftRequest{
			requestedBy:         campaign.CreatorID,
			amount:              amount,
			reason:              fmt.Sprintf("Automatic withdrawal request for reaching %d%% of the funding goal", pct),
			autoCreated:         true,
			milestonePercentage: pct,
		}, uc.now())
		if errors.Is(err, domainerrors.ErrPendingRequestExists) {
			logger.Info("milestone withdrawal deferred by active request",
				"event", "escrow_milestone_request_deferred",
				"module", "donor-governance/withdrawal-escrow",
				"layer", "application",
				"campaign_id", campaign.CampaignID,
				"milestone_percentage", pct,
			)
			return entities.WithdrawalRequest{}, false, nil
		}
		if err != nil {
			return entities.WithdrawalRequest{}, false, err
		}
		return request, true, nil
	}
	return entities.WithdrawalRequest{}, false, nil
}

type draftRequest struct {
	requestedBy         string
	amount              int64
	reason              string
	autoCreated         bool
	milestonePercentage int
}

func (uc RequestUseCase) open(
	ctx context.Context,
	campaign entities.Campaign,
	draft draftRequest,
	now time.Time,
) (entities.WithdrawalRequest, error) {
	logger := application.ResolveLogger(uc.Logger)
	if campaign.Status != entities.CampaignStatusActive {
		return entities.WithdrawalRequest{}, domainerrors.ErrCampaignNotActive
	}

	existing, err := uc.Requests.ListRequestsByCampaign(ctx, campaign.CampaignID)
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	for _, item := range existing {
		if !item.Status.IsTerminal() {
			return entities.WithdrawalRequest{}, domainerrors.ErrPendingRequestExists
		}
	}
	// With no active request nothing else is committed against the balance.
	if available := campaign.CurrentAmount; draft.amount > available {
		logger.Warn("withdrawal amount exceeds available balance",
			"event", "escrow_request_amount_exceeds_available",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "application",
			"campaign_id", campaign.CampaignID,
			"amount", draft.amount,
			"available", available,
		)
		return entities.WithdrawalRequest{}, domainerrors.ErrAmountExceedsAvailable
	}

	requestID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	request := entities.WithdrawalRequest{
		RequestID:           requestID,
		CampaignID:          campaign.CampaignID,
		RequestedBy:         draft.requestedBy,
		Amount:              draft.amount,
		Reason:              draft.reason,
		Status:              entities.RequestStatusPendingVoting,
		VotingStartDate:     now.Add(uc.VotingStartDelay),
		AutoCreated:         draft.autoCreated,
		MilestonePercentage: draft.milestonePercentage,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	envelope, err := newEscrowEnvelope(eventID, EventRequestCreated, request.CampaignID, now, map[string]any{
		"request_id":           request.RequestID,
		"campaign_id":          request.CampaignID,
		"requested_by":         request.RequestedBy,
		"amount":               request.Amount,
		"auto_created":         request.AutoCreated,
		"milestone_percentage": request.MilestonePercentage,
		"voting_start_date":    request.VotingStartDate.Format(time.RFC3339Nano),
	})
	if err != nil {
		return entities.WithdrawalRequest{}, err
	}
	if err := uc.Requests.CreateRequest(ctx, request, envelope); err != nil {
		return entities.WithdrawalRequest{}, err
	}

	logger.Info("withdrawal request created",
		"event", "escrow_request_created",
		"module", "donor-governance/withdrawal-escrow",
		"layer", "application",
		"request_id", request.RequestID,
		"campaign_id", request.CampaignID,
		"amount", request.Amount,
		"auto_created", request.AutoCreated,
	)
	return request, nil
}

func (uc RequestUseCase) milestones() []int {
	items := make([]int, 0, len(uc.MilestonePercentages))
	for _, pct := range uc.MilestonePercentages {
		if pct > 0 && pct <= 100 {
			items = append(items, pct)
		}
	}
	sort.Ints(items)
	return items
}

func (uc RequestUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func (uc RequestUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func hashCreateRequestCommand(cmd CreateRequestCommand) string {
	payload := map[string]string{
		"campaign_id":  cmd.CampaignID,
		"requested_by": cmd.RequestedBy,
		"amount":       strconv.FormatInt(cmd.Amount, 10),
		"reason":       strings.TrimSpace(cmd.Reason),
		"op":           "create_withdrawal_request",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
