package postgresadapter

import (
	"strings"
	"time"

	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"

	"github.com/shopspring/decimal"
)

type requestModel struct {
	RequestID            string     `gorm:"column:request_id;primaryKey"`
	CampaignID           string     `gorm:"column:campaign_id"`
	RequestedBy          string     `gorm:"column:requested_by"`
	Amount               int64      `gorm:"column:amount"`
	Reason               string     `gorm:"column:reason"`
	Status               string     `gorm:"column:status"`
	VotingStartDate      time.Time  `gorm:"column:voting_start_date"`
	VotingEndDate        *time.Time `gorm:"column:voting_end_date"`
	AutoCreated          bool       `gorm:"column:auto_created"`
	MilestonePercentage  int        `gorm:"column:milestone_percentage"`
	AdminReviewedAt      *time.Time `gorm:"column:admin_reviewed_at"`
	AdminReviewedBy      string     `gorm:"column:admin_reviewed_by"`
	AdminRejectionReason string     `gorm:"column:admin_rejection_reason"`
	ReleasedAt           *time.Time `gorm:"column:released_at"`
	CreatedAt            time.Time  `gorm:"column:created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at"`
}

func (requestModel) TableName() string {
	return "withdrawal_requests"
}

func requestModelFromEntity(request entities.WithdrawalRequest) requestModel {
	row := requestModel{
		RequestID:            strings.TrimSpace(request.RequestID),
		CampaignID:           strings.TrimSpace(request.CampaignID),
		RequestedBy:          strings.TrimSpace(request.RequestedBy),
		Amount:               request.Amount,
		Reason:               request.Reason,
		Status:               string(request.Status),
		VotingStartDate:      request.VotingStartDate.UTC(),
		VotingEndDate:        normalizeOptionalTime(request.VotingEndDate),
		AutoCreated:          request.AutoCreated,
		MilestonePercentage:  request.MilestonePercentage,
		AdminReviewedAt:      normalizeOptionalTime(request.AdminReviewedAt),
		AdminReviewedBy:      strings.TrimSpace(request.AdminReviewedBy),
		AdminRejectionReason: request.AdminRejectionReason,
		ReleasedAt:           normalizeOptionalTime(request.ReleasedAt),
		CreatedAt:            request.CreatedAt.UTC(),
		UpdatedAt:            request.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

// requestUpdates lists every mutable column so zero values and nil
// timestamps are written too.
func requestUpdates(row requestModel) map[string]any {
	return map[string]any{
		"status":                 row.Status,
		"voting_start_date":      row.VotingStartDate,
		"voting_end_date":        row.VotingEndDate,
		"admin_reviewed_at":      row.AdminReviewedAt,
		"admin_reviewed_by":      row.AdminReviewedBy,
		"admin_rejection_reason": row.AdminRejectionReason,
		"released_at":            row.ReleasedAt,
		"updated_at":             row.UpdatedAt,
	}
}

func (m requestModel) toEntity() entities.WithdrawalRequest {
	return entities.WithdrawalRequest{
		RequestID:            m.RequestID,
		CampaignID:           m.CampaignID,
		RequestedBy:          m.RequestedBy,
		Amount:               m.Amount,
		Reason:               m.Reason,
		Status:               entities.RequestStatus(m.Status),
		VotingStartDate:      m.VotingStartDate.UTC(),
		VotingEndDate:        normalizeOptionalTime(m.VotingEndDate),
		AutoCreated:          m.AutoCreated,
		MilestonePercentage:  m.MilestonePercentage,
		AdminReviewedAt:      normalizeOptionalTime(m.AdminReviewedAt),
		AdminReviewedBy:      m.AdminReviewedBy,
		AdminRejectionReason: m.AdminRejectionReason,
		ReleasedAt:           normalizeOptionalTime(m.ReleasedAt),
		CreatedAt:            m.CreatedAt.UTC(),
		UpdatedAt:            m.UpdatedAt.UTC(),
	}
}

type voteModel struct {
	VoteID     string    `gorm:"column:vote_id;primaryKey"`
	RequestID  string    `gorm:"column:request_id"`
	CampaignID string    `gorm:"column:campaign_id"`
	DonorID    string    `gorm:"column:donor_id"`
	VoteValue  string    `gorm:"column:vote_value"`
	Weight     int64     `gorm:"column:weight"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (voteModel) TableName() string {
	return "withdrawal_votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	row := voteModel{
		VoteID:     strings.TrimSpace(vote.VoteID),
		RequestID:  strings.TrimSpace(vote.RequestID),
		CampaignID: strings.TrimSpace(vote.CampaignID),
		DonorID:    strings.TrimSpace(vote.DonorID),
		VoteValue:  string(vote.Value),
		Weight:     vote.Weight,
		CreatedAt:  vote.CreatedAt.UTC(),
		UpdatedAt:  vote.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		VoteID:     m.VoteID,
		RequestID:  m.RequestID,
		CampaignID: m.CampaignID,
		DonorID:    m.DonorID,
		Value:      entities.VoteValue(m.VoteValue),
		Weight:     m.Weight,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

type disbursementModel struct {
	DisbursementID string    `gorm:"column:disbursement_id;primaryKey"`
	RequestID      string    `gorm:"column:request_id"`
	CampaignID     string    `gorm:"column:campaign_id"`
	RecipientID    string    `gorm:"column:recipient_id"`
	IdempotencyKey string    `gorm:"column:idempotency_key"`
	TransactionID  string    `gorm:"column:transaction_id"`
	Amount         int64     `gorm:"column:amount"`
	Status         string    `gorm:"column:status"`
	FailureReason  string    `gorm:"column:failure_reason"`
	Attempts       int       `gorm:"column:attempts"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (disbursementModel) TableName() string {
	return "escrow_disbursements"
}

func disbursementModelFromEntity(item entities.Disbursement) disbursementModel {
	row := disbursementModel{
		DisbursementID: strings.TrimSpace(item.DisbursementID),
		RequestID:      strings.TrimSpace(item.RequestID),
		CampaignID:     strings.TrimSpace(item.CampaignID),
		RecipientID:    strings.TrimSpace(item.RecipientID),
		IdempotencyKey: strings.TrimSpace(item.IdempotencyKey),
		TransactionID:  strings.TrimSpace(item.TransactionID),
		Amount:         item.Amount,
		Status:         string(item.Status),
		FailureReason:  item.FailureReason,
		Attempts:       item.Attempts,
		CreatedAt:      item.CreatedAt.UTC(),
		UpdatedAt:      item.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m disbursementModel) toEntity() entities.Disbursement {
	return entities.Disbursement{
		DisbursementID: m.DisbursementID,
		RequestID:      m.RequestID,
		CampaignID:     m.CampaignID,
		RecipientID:    m.RecipientID,
		IdempotencyKey: m.IdempotencyKey,
		TransactionID:  m.TransactionID,
		Amount:         m.Amount,
		Status:         entities.DisbursementStatus(m.Status),
		FailureReason:  m.FailureReason,
		Attempts:       m.Attempts,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

type refundCaseModel struct {
	CaseID              string          `gorm:"column:case_id;primaryKey"`
	CampaignID          string          `gorm:"column:campaign_id"`
	DonorID             string          `gorm:"column:donor_id"`
	DonationID          string          `gorm:"column:donation_id"`
	OriginalAmount      int64           `gorm:"column:original_amount"`
	RefundedAmount      int64           `gorm:"column:refunded_amount"`
	RefundRatio         decimal.Decimal `gorm:"column:refund_ratio"`
	RemainingRefund     int64           `gorm:"column:remaining_refund"`
	Status              string          `gorm:"column:status"`
	RefundMethod        string          `gorm:"column:refund_method"`
	RefundTransactionID string          `gorm:"column:refund_transaction_id"`
	FailureReason       string          `gorm:"column:failure_reason"`
	Attempts            int             `gorm:"column:attempts"`
	CreatedAt           time.Time       `gorm:"column:created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at"`
}

func (refundCaseModel) TableName() string {
	return "refund_cases"
}

func refundCaseModelFromEntity(item entities.RefundCase) refundCaseModel {
	row := refundCaseModel{
		CaseID:              strings.TrimSpace(item.CaseID),
		CampaignID:          strings.TrimSpace(item.CampaignID),
		DonorID:             strings.TrimSpace(item.DonorID),
		DonationID:          strings.TrimSpace(item.DonationID),
		OriginalAmount:      item.OriginalAmount,
		RefundedAmount:      item.RefundedAmount,
		RefundRatio:         item.RefundRatio,
		RemainingRefund:     item.RemainingRefund,
		Status:              string(item.Status),
		RefundMethod:        string(item.Method),
		RefundTransactionID: strings.TrimSpace(item.RefundTransactionID),
		FailureReason:       item.FailureReason,
		Attempts:            item.Attempts,
		CreatedAt:           item.CreatedAt.UTC(),
		UpdatedAt:           item.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m refundCaseModel) toEntity() entities.RefundCase {
	return entities.RefundCase{
		CaseID:              m.CaseID,
		CampaignID:          m.CampaignID,
		DonorID:             m.DonorID,
		DonationID:          m.DonationID,
		OriginalAmount:      m.OriginalAmount,
		RefundedAmount:      m.RefundedAmount,
		RefundRatio:         m.RefundRatio,
		RemainingRefund:     m.RemainingRefund,
		Status:              entities.RefundStatus(m.Status),
		Method:              entities.RefundMethod(m.RefundMethod),
		RefundTransactionID: m.RefundTransactionID,
		FailureReason:       m.FailureReason,
		Attempts:            m.Attempts,
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
}

type campaignModel struct {
	CampaignID    string    `gorm:"column:campaign_id;primaryKey"`
	CreatorID     string    `gorm:"column:creator_id"`
	GoalAmount    int64     `gorm:"column:goal_amount"`
	CurrentAmount int64     `gorm:"column:current_amount"`
	Status        string    `gorm:"column:status"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (campaignModel) TableName() string {
	return "campaigns"
}

func (m campaignModel) toEntity() entities.Campaign {
	return entities.Campaign{
		CampaignID:    m.CampaignID,
		CreatorID:     m.CreatorID,
		GoalAmount:    m.GoalAmount,
		CurrentAmount: m.CurrentAmount,
		Status:        entities.CampaignStatus(m.Status),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

type ledgerAppliedModel struct {
	LedgerKey  string    `gorm:"column:ledger_key;primaryKey"`
	CampaignID string    `gorm:"column:campaign_id"`
	Amount     int64     `gorm:"column:amount"`
	AppliedAt  time.Time `gorm:"column:applied_at"`
}

func (ledgerAppliedModel) TableName() string {
	return "campaign_ledger_applied"
}

type donationModel struct {
	DonationID string    `gorm:"column:donation_id;primaryKey"`
	CampaignID string    `gorm:"column:campaign_id"`
	DonorID    string    `gorm:"column:donor_id"`
	Amount     int64     `gorm:"column:amount"`
	Status     string    `gorm:"column:status"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (donationModel) TableName() string {
	return "donations"
}

func (m donationModel) toEntity() entities.DonationRecord {
	return entities.DonationRecord{
		DonationID: m.DonationID,
		CampaignID: m.CampaignID,
		DonorID:    m.DonorID,
		Amount:     m.Amount,
		Status:     entities.DonationStatus(m.Status),
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	RequestID   string    `gorm:"column:request_id"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "escrow_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	Sequence     int64      `gorm:"column:sequence;<-:false"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "escrow_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "escrow_event_dedup"
}

func toRequestEntities(rows []requestModel) []entities.WithdrawalRequest {
	items := make([]entities.WithdrawalRequest, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func toVoteEntities(rows []voteModel) []entities.Vote {
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func toRefundCaseEntities(rows []refundCaseModel) []entities.RefundCase {
	items := make([]entities.RefundCase, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}
