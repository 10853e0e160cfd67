package commands

import (
	"time"

	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
	"fundgate/internal/shared/events"
)

const (
	EventRequestCreated        = "withdrawal_request.created"
	EventRequestVotingStarted  = "withdrawal_request.voting_started"
	EventRequestVotingExtended = "withdrawal_request.voting_extended"
	EventRequestVotingEnded    = "withdrawal_request.voting_ended"
	EventRequestAdminApproved  = "withdrawal_request.admin_approved"
	EventRequestAdminRejected  = "withdrawal_request.admin_rejected"
	EventRequestReleased       = "withdrawal_request.released"
	EventRequestCancelled      = "withdrawal_request.cancelled"
	EventVoteCast              = "vote.cast"
	EventCampaignCancelled     = "campaign.cancelled"
	EventRefundIssued          = "refund.issued"
	EventRefundCompleted       = "refund.completed"
	EventRefundFailed          = "refund.failed"
)

func newEscrowEnvelope(
	eventID string,
	eventType string,
	campaignID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Partitioned by campaign so request, vote and refund events for one
	// campaign stay ordered for notification consumers.
	return events.New(eventID, eventType, "withdrawal-escrow", "campaign_id", campaignID, occurredAt, data)
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339Nano)
}
