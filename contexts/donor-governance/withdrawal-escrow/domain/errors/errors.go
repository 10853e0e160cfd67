package errors

import "errors"

var (
	ErrInvalidInput            = errors.New("invalid withdrawal input")
	ErrAmountExceedsAvailable  = errors.New("amount exceeds available balance")
	ErrReasonTooShort          = errors.New("reason is too short")
	ErrPendingRequestExists    = errors.New("campaign already has a pending withdrawal request")
	ErrIllegalTransition       = errors.New("illegal withdrawal request transition")
	ErrNotEligibleToVote       = errors.New("donor is not eligible to vote")
	ErrVotingWindowClosed      = errors.New("voting window is closed")
	ErrInvalidVoteValue        = errors.New("invalid vote value")
	ErrRequestNotFound         = errors.New("withdrawal request not found")
	ErrCampaignNotFound        = errors.New("campaign not found")
	ErrCampaignNotActive       = errors.New("campaign is not active")
	ErrForbidden               = errors.New("actor is not allowed to perform this action")
	ErrConflict                = errors.New("withdrawal state conflict")
	ErrIdempotencyConflict     = errors.New("idempotency key conflict")
	ErrDisbursementNotFound    = errors.New("disbursement not found")
	ErrRefundCaseNotFound      = errors.New("refund case not found")
	ErrUnknownPaymentReference = errors.New("unknown payment reference")
	ErrPaymentGatewayFailure   = errors.New("payment gateway failure")
	ErrDisbursementInFlight    = errors.New("a disbursement for this campaign is awaiting confirmation")
)
