package entities

import "time"

type DisbursementStatus string

const (
	DisbursementStatusPending   DisbursementStatus = "pending"
	DisbursementStatusSucceeded DisbursementStatus = "succeeded"
	DisbursementStatusFailed    DisbursementStatus = "failed"
)

// Disbursement is the single outbound transfer for an approved request. The
// idempotency key is derived from the request id so retries never double pay.
type Disbursement struct {
	DisbursementID string
	RequestID      string
	CampaignID     string
	RecipientID    string
	IdempotencyKey string
	TransactionID  string
	Amount         int64
	Status         DisbursementStatus
	FailureReason  string
	Attempts       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Outstanding is true while a sent transfer awaits gateway confirmation.
func (d Disbursement) Outstanding() bool {
	return d.Status == DisbursementStatusPending && d.TransactionID != ""
}

func ReleaseIdempotencyKey(requestID string) string {
	return "release:" + requestID
}

func RefundIdempotencyKey(caseID string) string {
	return "refund:" + caseID
}
