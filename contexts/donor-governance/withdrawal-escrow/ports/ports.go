package ports

import (
	"context"
	"time"

	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	"fundgate/internal/shared/events"
	"fundgate/internal/shared/outbox"
)

type EventEnvelope = events.Envelope
type OutboxMessage = outbox.Message

// RequestRepository persists withdrawal requests. Status changes go through
// TransitionRequest, a compare-and-swap on the current status that appends
// the given events to the outbox only when the swap wins.
type RequestRepository interface {
	CreateRequest(ctx context.Context, request entities.WithdrawalRequest, event EventEnvelope) error
	GetRequest(ctx context.Context, requestID string) (entities.WithdrawalRequest, error)
	ListRequestsByCampaign(ctx context.Context, campaignID string) ([]entities.WithdrawalRequest, error)
	ListDueRequests(ctx context.Context, status entities.RequestStatus, now time.Time, limit int) ([]entities.WithdrawalRequest, error)
	TransitionRequest(
		ctx context.Context,
		from entities.RequestStatus,
		next entities.WithdrawalRequest,
		events ...EventEnvelope,
	) (bool, error)
	// CloseVotingWindow locks the request, and when its window is due at now
	// hands the request and every committed vote to decide, persisting the
	// returned request and events atomically. The bool is false when the
	// window was not due or was already closed.
	CloseVotingWindow(
		ctx context.Context,
		requestID string,
		now time.Time,
		decide VotingDecider,
	) (entities.WithdrawalRequest, bool, error)
	SumRequestedAmount(ctx context.Context, campaignID string, statuses []entities.RequestStatus) (int64, error)
	HasMilestoneRequest(ctx context.Context, campaignID string, milestonePercentage int) (bool, error)
}

type VotingDecider func(
	request entities.WithdrawalRequest,
	votes []entities.Vote,
) (entities.WithdrawalRequest, []EventEnvelope, error)

// VoteRepository upserts votes keyed by (request, donor). UpsertVote rechecks
// that the request still accepts votes at castAt inside the write.
type VoteRepository interface {
	UpsertVote(ctx context.Context, vote entities.Vote, castAt time.Time, event EventEnvelope) (entities.Vote, error)
	ListVotesByRequest(ctx context.Context, requestID string) ([]entities.Vote, error)
}

type DisbursementRepository interface {
	GetDisbursementByRequest(ctx context.Context, requestID string) (entities.Disbursement, bool, error)
	GetDisbursementByKey(ctx context.Context, idempotencyKey string) (entities.Disbursement, error)
	SaveDisbursement(ctx context.Context, disbursement entities.Disbursement) error
}

type RefundRepository interface {
	// CreateRefundCases inserts the plan; rows already present for the same
	// (donation, method) are left untouched.
	CreateRefundCases(ctx context.Context, cases []entities.RefundCase, events []EventEnvelope) error
	GetRefundCase(ctx context.Context, caseID string) (entities.RefundCase, error)
	ListRefundCasesByCampaign(ctx context.Context, campaignID string) ([]entities.RefundCase, error)
	ListDispatchableRefundCases(ctx context.Context, limit int) ([]entities.RefundCase, error)
	SaveRefundCase(ctx context.Context, refundCase entities.RefundCase, events ...EventEnvelope) error
}

// CampaignLedger is the campaign service view the escrow core relies on.
type CampaignLedger interface {
	GetCampaign(ctx context.Context, campaignID string) (entities.Campaign, error)
	// DecrementBalance is applied at most once per key.
	DecrementBalance(ctx context.Context, campaignID string, amount int64, key string) error
	MarkCampaignCancelled(ctx context.Context, campaignID string, at time.Time) (bool, error)
}

type DonationLedger interface {
	CumulativeCompletedAmount(ctx context.Context, campaignID string, donorID string) (int64, error)
	ListCompletedDonations(ctx context.Context, campaignID string) ([]entities.DonationRecord, error)
	MarkDonationRefunded(ctx context.Context, donationID string, status entities.DonationStatus) error
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type TransferRequest struct {
	IdempotencyKey string
	RecipientID    string
	Reference      string
	Amount         int64
}

type RefundRequest struct {
	IdempotencyKey string
	DonorID        string
	DonationID     string
	Amount         int64
}

// PaymentResult is returned synchronously. A failed status is a permanent
// decline; a returned error is treated as transient and retried.
type PaymentResult struct {
	TransactionID string
	Status        PaymentStatus
	FailureReason string
}

type PaymentGateway interface {
	Transfer(ctx context.Context, req TransferRequest) (PaymentResult, error)
	Refund(ctx context.Context, req RefundRequest) (PaymentResult, error)
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	RequestID   string
	ExpiresAt   time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// EventDedupStore reports whether an inbound event id was already handled.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
