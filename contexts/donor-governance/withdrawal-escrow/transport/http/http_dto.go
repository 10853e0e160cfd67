package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateWithdrawalRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type WithdrawalRequestResponse struct {
	RequestID            string `json:"request_id"`
	CampaignID           string `json:"campaign_id"`
	RequestedBy          string `json:"requested_by"`
	Amount               int64  `json:"amount"`
	Reason               string `json:"reason"`
	Status               string `json:"status"`
	VotingStartDate      string `json:"voting_start_date"`
	VotingEndDate        string `json:"voting_end_date,omitempty"`
	AutoCreated          bool   `json:"auto_created"`
	MilestonePercentage  int    `json:"milestone_percentage,omitempty"`
	AdminReviewedAt      string `json:"admin_reviewed_at,omitempty"`
	AdminReviewedBy      string `json:"admin_reviewed_by,omitempty"`
	AdminRejectionReason string `json:"admin_rejection_reason,omitempty"`
	ReleasedAt           string `json:"released_at,omitempty"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
	Replayed             bool   `json:"replayed,omitempty"`
}

type WithdrawalRequestListResponse struct {
	Items []WithdrawalRequestResponse `json:"items"`
}

type CastVoteRequest struct {
	Vote string `json:"vote"`
}

type VoteResponse struct {
	VoteID    string `json:"vote_id"`
	RequestID string `json:"request_id"`
	DonorID   string `json:"donor_id"`
	Vote      string `json:"vote"`
	Weight    int64  `json:"weight"`
	CastAt    string `json:"cast_at"`
}

type TallyResponse struct {
	RequestID         string `json:"request_id"`
	Status            string `json:"status"`
	ApproveWeight     int64  `json:"approve_weight"`
	RejectWeight      int64  `json:"reject_weight"`
	ApproveVotes      int    `json:"approve_votes"`
	RejectVotes       int    `json:"reject_votes"`
	ApprovePercentage string `json:"approve_percentage"`
	Threshold         string `json:"threshold"`
	WindowClosed      bool   `json:"window_closed"`
}

type ExtendVotingRequest struct {
	NewEndDate time.Time `json:"new_end_date"`
}

type RejectWithdrawalRequest struct {
	Reason string `json:"reason"`
}

type ReleaseResponse struct {
	RequestID          string `json:"request_id"`
	RequestStatus      string `json:"request_status"`
	DisbursementID     string `json:"disbursement_id,omitempty"`
	DisbursementStatus string `json:"disbursement_status,omitempty"`
	TransactionID      string `json:"transaction_id,omitempty"`
	Amount             int64  `json:"amount"`
	AlreadyReleased    bool   `json:"already_released"`
	Pending            bool   `json:"pending"`
	FailureReason      string `json:"failure_reason,omitempty"`
}

type ApproveResponse struct {
	Request      WithdrawalRequestResponse `json:"request"`
	Release      ReleaseResponse           `json:"release"`
	ReleaseError string                    `json:"release_error,omitempty"`
}

type RefundCaseResponse struct {
	CaseID          string `json:"case_id"`
	CampaignID      string `json:"campaign_id"`
	DonorID         string `json:"donor_id"`
	DonationID      string `json:"donation_id"`
	OriginalAmount  int64  `json:"original_amount"`
	RefundedAmount  int64  `json:"refunded_amount"`
	RefundRatio     string `json:"refund_ratio"`
	RemainingRefund int64  `json:"remaining_refund"`
	Status          string `json:"status"`
	Method          string `json:"refund_method"`
	TransactionID   string `json:"refund_transaction_id,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
}

type RefundCaseListResponse struct {
	Items []RefundCaseResponse `json:"items"`
}

type RefundSummaryResponse struct {
	CampaignID  string               `json:"campaign_id"`
	Recoverable int64                `json:"recoverable"`
	Allocated   int64                `json:"allocated"`
	RefundRatio string               `json:"refund_ratio"`
	Dispatched  int                  `json:"dispatched"`
	Failed      int                  `json:"failed"`
	Cases       []RefundCaseResponse `json:"cases"`
}

type CancelCampaignResponse struct {
	Request           WithdrawalRequestResponse `json:"request"`
	CampaignCancelled bool                      `json:"campaign_cancelled"`
	CancelledRequests []string                  `json:"cancelled_requests"`
	Refunds           RefundSummaryResponse     `json:"refunds"`
}

type PaymentWebhookRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	TransactionID  string `json:"transaction_id"`
	Status         string `json:"status"`
	FailureReason  string `json:"failure_reason,omitempty"`
}
