package httpadapter

import (
	"context"
	"log/slog"
	"time"

	application "fundgate/contexts/donor-governance/withdrawal-escrow/application"
	"fundgate/contexts/donor-governance/withdrawal-escrow/application/commands"
	"fundgate/contexts/donor-governance/withdrawal-escrow/application/queries"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	httptransport "fundgate/contexts/donor-governance/withdrawal-escrow/transport/http"
)

type Handler struct {
	Requests      commands.RequestUseCase
	Voting        commands.VotingUseCase
	Votes         commands.VoteUseCase
	Review        commands.AdminReviewUseCase
	Disbursements commands.DisbursementUseCase
	Refunds       commands.RefundUseCase
	Webhooks      commands.PaymentWebhookUseCase
	Queries       queries.RequestQueryUseCase
	Logger        *slog.Logger
}

// CreateRequestHandler godoc
// @Summary Create a withdrawal request
// @Description Opens a withdrawal request against the campaign escrow. Voting starts after the configured delay.
// @Tags withdrawal-escrow
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Campaign creator id"
// @Param Idempotency-Key header string false "Idempotency key"
// @Param campaign_id path string true "Campaign id"
// @Param body body httptransport.CreateWithdrawalRequest true "Withdrawal request"
// @Success 201 {object} httptransport.WithdrawalRequestResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/campaigns/{campaign_id}/withdrawal-requests [post]
func (h Handler) CreateRequestHandler(
	ctx context.Context,
	userID string,
	campaignID string,
	idempotencyKey string,
	req httptransport.CreateWithdrawalRequest,
) (httptransport.WithdrawalRequestResponse, error) {
	result, err := h.Requests.CreateRequest(ctx, commands.CreateRequestCommand{
		CampaignID:     campaignID,
		RequestedBy:    userID,
		Amount:         req.Amount,
		Reason:         req.Reason,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		application.ResolveLogger(h.Logger).Warn("create withdrawal request failed",
			"event", "http_create_withdrawal_request_failed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "transport",
			"campaign_id", campaignID,
			"user_id", userID,
			"error", err.Error(),
		)
		return httptransport.WithdrawalRequestResponse{}, err
	}
	resp := mapRequest(result.Request)
	resp.Replayed = result.Replayed
	return resp, nil
}

// ListRequestsHandler godoc
// @Summary List withdrawal requests for a campaign
// @Tags withdrawal-escrow
// @Produce json
// @Param campaign_id path string true "Campaign id"
// @Success 200 {object} httptransport.WithdrawalRequestListResponse
// @Router /v1/campaigns/{campaign_id}/withdrawal-requests [get]
func (h Handler) ListRequestsHandler(ctx context.Context, campaignID string) (httptransport.WithdrawalRequestListResponse, error) {
	requests, err := h.Queries.ListByCampaign(ctx, campaignID)
	if err != nil {
		return httptransport.WithdrawalRequestListResponse{}, err
	}
	items := make([]httptransport.WithdrawalRequestResponse, 0, len(requests))
	for _, request := range requests {
		items = append(items, mapRequest(request))
	}
	return httptransport.WithdrawalRequestListResponse{Items: items}, nil
}

// GetRequestHandler godoc
// @Summary Get a withdrawal request
// @Tags withdrawal-escrow
// @Produce json
// @Param request_id path string true "Withdrawal request id"
// @Success 200 {object} httptransport.WithdrawalRequestResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/withdrawal-requests/{request_id} [get]
func (h Handler) GetRequestHandler(ctx context.Context, requestID string) (httptransport.WithdrawalRequestResponse, error) {
	request, err := h.Queries.GetRequest(ctx, requestID)
	if err != nil {
		return httptransport.WithdrawalRequestResponse{}, err
	}
	return mapRequest(request), nil
}

// TallyHandler godoc
// @Summary Get the weighted vote tally
// @Tags withdrawal-escrow
// @Produce json
// @Param request_id path string true "Withdrawal request id"
// @Success 200 {object} httptransport.TallyResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/withdrawal-requests/{request_id}/tally [get]
func (h Handler) TallyHandler(ctx context.Context, requestID string) (httptransport.TallyResponse, error) {
	view, err := h.Queries.Tally(ctx, requestID)
	if err != nil {
		return httptransport.TallyResponse{}, err
	}
	return httptransport.TallyResponse{
		RequestID:         view.Request.RequestID,
		Status:            string(view.Request.Status),
		ApproveWeight:     view.Tally.ApproveWeight,
		RejectWeight:      view.Tally.RejectWeight,
		ApproveVotes:      view.Tally.ApproveVotes,
		RejectVotes:       view.Tally.RejectVotes,
		ApprovePercentage: view.Tally.ApprovePercentage.StringFixed(2),
		Threshold:         view.Threshold.StringFixed(2),
		WindowClosed:      view.WindowClosed,
	}, nil
}

// CastVoteHandler godoc
// @Summary Cast or change a donor vote
// @Description Upserts the caller's vote. Weight is the donor's completed donation total at cast time.
// @Tags withdrawal-escrow
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Donor id"
// @Param request_id path string true "Withdrawal request id"
// @Param body body httptransport.CastVoteRequest true "Vote"
// @Success 200 {object} httptransport.VoteResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/withdrawal-requests/{request_id}/votes [post]
func (h Handler) CastVoteHandler(
	ctx context.Context,
	donorID string,
	requestID string,
	req httptransport.CastVoteRequest,
) (httptransport.VoteResponse, error) {
	vote, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		RequestID: requestID,
		DonorID:   donorID,
		Value:     entities.VoteValue(req.Vote),
	})
	if err != nil {
		application.ResolveLogger(h.Logger).Warn("cast vote failed",
			"event", "http_cast_vote_failed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "transport",
			"request_id", requestID,
			"donor_id", donorID,
			"error", err.Error(),
		)
		return httptransport.VoteResponse{}, err
	}
	return httptransport.VoteResponse{
		VoteID:    vote.VoteID,
		RequestID: vote.RequestID,
		DonorID:   vote.DonorID,
		Vote:      string(vote.Value),
		Weight:    vote.Weight,
		CastAt:    vote.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// StartVotingHandler godoc
// @Summary Open the voting window now
// @Tags withdrawal-escrow
// @Produce json
// @Param request_id path string true "Withdrawal request id"
// @Success 200 {object} httptransport.WithdrawalRequestResponse
// @Router /v1/admin/withdrawal-requests/{request_id}/start-voting [post]
func (h Handler) StartVotingHandler(ctx context.Context, actor commands.Actor, requestID string) (httptransport.WithdrawalRequestResponse, error) {
	request, err := h.Voting.StartVoting(ctx, commands.StartVotingCommand{RequestID: requestID, Actor: actor})
	if err != nil {
		return httptransport.WithdrawalRequestResponse{}, err
	}
	return mapRequest(request), nil
}

// ExtendVotingHandler godoc
// @Summary Extend an open voting window
// @Tags withdrawal-escrow
// @Accept json
// @Produce json
// @Param request_id path string true "Withdrawal request id"
// @Param body body httptransport.ExtendVotingRequest true "New end date"
// @Success 200 {object} httptransport.WithdrawalRequestResponse
// @Router /v1/admin/withdrawal-requests/{request_id}/extend-voting [post]
func (h Handler) ExtendVotingHandler(
	ctx context.Context,
	actor commands.Actor,
	requestID string,
	req httptransport.ExtendVotingRequest,
) (httptransport.WithdrawalRequestResponse, error) {
	request, err := h.Voting.ExtendVoting(ctx, commands.ExtendVotingCommand{
		RequestID:  requestID,
		Actor:      actor,
		NewEndDate: req.NewEndDate,
	})
	if err != nil {
		return httptransport.WithdrawalRequestResponse{}, err
	}
	return mapRequest(request), nil
}

// ApproveHandler godoc
// @Summary Approve a withdrawal request and release funds
// @Tags withdrawal-escrow
// @Produce json
// @Param request_id path string true "Withdrawal request id"
// @Success 200 {object} httptransport.ApproveResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/admin/withdrawal-requests/{request_id}/approve [post]
func (h Handler) ApproveHandler(ctx context.Context, actor commands.Actor, requestID string) (httptransport.ApproveResponse, error) {
	result, err := h.Review.Approve(ctx, commands.ApproveCommand{RequestID: requestID, Actor: actor})
	if err != nil {
		return httptransport.ApproveResponse{}, err
	}
	resp := httptransport.ApproveResponse{
		Request: mapRequest(result.Request),
		Release: mapRelease(result.Request, result.Release),
	}
	if result.ReleaseError != nil {
		resp.ReleaseError = result.ReleaseError.Error()
	}
	return resp, nil
}

// RejectHandler godoc
// @Summary Reject a withdrawal request
// @Tags withdrawal-escrow
// @Accept json
// @Produce json
// @Param request_id path string true "Withdrawal request id"
// @Param body body httptransport.RejectWithdrawalRequest true "Rejection reason"
// @Success 200 {object} httptransport.WithdrawalRequestResponse
// @Router /v1/admin/withdrawal-requests/{request_id}/reject [post]
func (h Handler) RejectHandler(
	ctx context.Context,
	actor commands.Actor,
	requestID string,
	req httptransport.RejectWithdrawalRequest,
) (httptransport.WithdrawalRequestResponse, error) {
	request, err := h.Review.Reject(ctx, commands.RejectCommand{
		RequestID: requestID,
		Actor:     actor,
		Reason:    req.Reason,
	})
	if err != nil {
		return httptransport.WithdrawalRequestResponse{}, err
	}
	return mapRequest(request), nil
}

// ReleaseHandler godoc
// @Summary Retry the release transfer of an approved request
// @Tags withdrawal-escrow
// @Produce json
// @Param request_id path string true "Withdrawal request id"
// @Success 200 {object} httptransport.ReleaseResponse
// @Router /v1/admin/withdrawal-requests/{request_id}/release [post]
func (h Handler) ReleaseHandler(ctx context.Context, requestID string) (httptransport.ReleaseResponse, error) {
	result, err := h.Disbursements.Release(ctx, commands.ReleaseCommand{RequestID: requestID})
	if err != nil {
		return httptransport.ReleaseResponse{}, err
	}
	return mapRelease(result.Request, result), nil
}

// CancelCampaignHandler godoc
// @Summary Cancel the campaign after a rejected request and refund donors
// @Tags withdrawal-escrow
// @Produce json
// @Param request_id path string true "Withdrawal request id"
// @Success 200 {object} httptransport.CancelCampaignResponse
// @Router /v1/admin/withdrawal-requests/{request_id}/cancel-campaign [post]
func (h Handler) CancelCampaignHandler(ctx context.Context, actor commands.Actor, requestID string) (httptransport.CancelCampaignResponse, error) {
	result, err := h.Review.CancelCampaignByRejection(ctx, commands.CancelCampaignCommand{
		RequestID: requestID,
		Actor:     actor,
	})
	if err != nil {
		return httptransport.CancelCampaignResponse{}, err
	}
	cancelled := result.CancelledRequests
	if cancelled == nil {
		cancelled = []string{}
	}
	return httptransport.CancelCampaignResponse{
		Request:           mapRequest(result.Request),
		CampaignCancelled: result.CampaignCancelled,
		CancelledRequests: cancelled,
		Refunds:           mapRefundSummary(result.Refunds),
	}, nil
}

// ListRefundCasesHandler godoc
// @Summary List refund cases for a campaign
// @Tags withdrawal-escrow
// @Produce json
// @Param campaign_id path string true "Campaign id"
// @Success 200 {object} httptransport.RefundCaseListResponse
// @Router /v1/campaigns/{campaign_id}/refund-cases [get]
func (h Handler) ListRefundCasesHandler(ctx context.Context, campaignID string) (httptransport.RefundCaseListResponse, error) {
	cases, err := h.Queries.ListRefundCases(ctx, campaignID)
	if err != nil {
		return httptransport.RefundCaseListResponse{}, err
	}
	return httptransport.RefundCaseListResponse{Items: mapRefundCases(cases)}, nil
}

// RetryRefundsHandler godoc
// @Summary Dispatch pending and failed escrow refunds
// @Tags withdrawal-escrow
// @Produce json
// @Param campaign_id path string true "Campaign id"
// @Success 200 {object} httptransport.RefundSummaryResponse
// @Router /v1/admin/campaigns/{campaign_id}/refunds/retry [post]
func (h Handler) RetryRefundsHandler(ctx context.Context, campaignID string) (httptransport.RefundSummaryResponse, error) {
	summary, err := h.Refunds.IssueRefunds(ctx, campaignID)
	if err != nil {
		return httptransport.RefundSummaryResponse{}, err
	}
	return mapRefundSummary(summary), nil
}

// PaymentWebhookHandler godoc
// @Summary Receive an asynchronous payment confirmation
// @Tags withdrawal-escrow
// @Accept json
// @Param body body httptransport.PaymentWebhookRequest true "Payment notification"
// @Success 202
// @Router /v1/payments/webhook [post]
func (h Handler) PaymentWebhookHandler(ctx context.Context, req httptransport.PaymentWebhookRequest) error {
	return h.Webhooks.Handle(ctx, commands.PaymentNotification{
		IdempotencyKey: req.IdempotencyKey,
		TransactionID:  req.TransactionID,
		Status:         req.Status,
		FailureReason:  req.FailureReason,
	})
}

func mapRequest(request entities.WithdrawalRequest) httptransport.WithdrawalRequestResponse {
	return httptransport.WithdrawalRequestResponse{
		RequestID:            request.RequestID,
		CampaignID:           request.CampaignID,
		RequestedBy:          request.RequestedBy,
		Amount:               request.Amount,
		Reason:               request.Reason,
		Status:               string(request.Status),
		VotingStartDate:      request.VotingStartDate.UTC().Format(time.RFC3339),
		VotingEndDate:        formatOptional(request.VotingEndDate),
		AutoCreated:          request.AutoCreated,
		MilestonePercentage:  request.MilestonePercentage,
		AdminReviewedAt:      formatOptional(request.AdminReviewedAt),
		AdminReviewedBy:      request.AdminReviewedBy,
		AdminRejectionReason: request.AdminRejectionReason,
		ReleasedAt:           formatOptional(request.ReleasedAt),
		CreatedAt:            request.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:            request.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func mapRelease(request entities.WithdrawalRequest, result commands.ReleaseResult) httptransport.ReleaseResponse {
	if result.Request.RequestID != "" {
		request = result.Request
	}
	return httptransport.ReleaseResponse{
		RequestID:          request.RequestID,
		RequestStatus:      string(request.Status),
		DisbursementID:     result.Disbursement.DisbursementID,
		DisbursementStatus: string(result.Disbursement.Status),
		TransactionID:      result.Disbursement.TransactionID,
		Amount:             request.Amount,
		AlreadyReleased:    result.AlreadyReleased,
		Pending:            result.Pending,
		FailureReason:      result.Disbursement.FailureReason,
	}
}

func mapRefundSummary(summary commands.RefundSummary) httptransport.RefundSummaryResponse {
	return httptransport.RefundSummaryResponse{
		CampaignID:  summary.CampaignID,
		Recoverable: summary.Recoverable,
		Allocated:   summary.Allocated,
		RefundRatio: summary.Ratio.String(),
		Dispatched:  summary.Dispatched,
		Failed:      summary.Failed,
		Cases:       mapRefundCases(summary.Cases),
	}
}

func mapRefundCases(cases []entities.RefundCase) []httptransport.RefundCaseResponse {
	items := make([]httptransport.RefundCaseResponse, 0, len(cases))
	for _, item := range cases {
		items = append(items, httptransport.RefundCaseResponse{
			CaseID:          item.CaseID,
			CampaignID:      item.CampaignID,
			DonorID:         item.DonorID,
			DonationID:      item.DonationID,
			OriginalAmount:  item.OriginalAmount,
			RefundedAmount:  item.RefundedAmount,
			RefundRatio:     item.RefundRatio.String(),
			RemainingRefund: item.RemainingRefund,
			Status:          string(item.Status),
			Method:          string(item.Method),
			TransactionID:   item.RefundTransactionID,
			FailureReason:   item.FailureReason,
		})
	}
	return items
}

func formatOptional(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
