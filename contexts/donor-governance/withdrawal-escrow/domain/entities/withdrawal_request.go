package entities

import (
	"strings"
	"time"
	"unicode/utf8"
)

type RequestStatus string

const (
	RequestStatusPendingVoting    RequestStatus = "pending_voting"
	RequestStatusVotingInProgress RequestStatus = "voting_in_progress"
	RequestStatusVotingCompleted  RequestStatus = "voting_completed"
	RequestStatusVotingRejected   RequestStatus = "voting_rejected"
	RequestStatusAdminApproved    RequestStatus = "admin_approved"
	RequestStatusAdminRejected    RequestStatus = "admin_rejected"
	RequestStatusReleased         RequestStatus = "released"
	RequestStatusCancelled        RequestStatus = "cancelled"
)

// MinReasonLength applies to creator reasons and admin rejection reasons.
const MinReasonLength = 10

// WithdrawalRequest is the escrow record gating a partial release of campaign
// funds. VotingStartDate holds the scheduled start until voting begins.
type WithdrawalRequest struct {
	RequestID            string
	CampaignID           string
	RequestedBy          string
	Amount               int64
	Reason               string
	Status               RequestStatus
	VotingStartDate      time.Time
	VotingEndDate        *time.Time
	AutoCreated          bool
	MilestonePercentage  int
	AdminReviewedAt      *time.Time
	AdminReviewedBy      string
	AdminRejectionReason string
	ReleasedAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

var transitions = map[RequestStatus][]RequestStatus{
	RequestStatusPendingVoting: {
		RequestStatusVotingInProgress,
		RequestStatusCancelled,
	},
	RequestStatusVotingInProgress: {
		RequestStatusVotingCompleted,
		RequestStatusVotingRejected,
		RequestStatusCancelled,
	},
	RequestStatusVotingCompleted: {
		RequestStatusAdminApproved,
		RequestStatusAdminRejected,
		RequestStatusCancelled,
	},
	RequestStatusAdminApproved: {
		RequestStatusReleased,
		RequestStatusCancelled,
	},
}

// ActiveStatuses lists the statuses that hold funds committed. At most one
// request per campaign may be in any of them.
func ActiveStatuses() []RequestStatus {
	return []RequestStatus{
		RequestStatusPendingVoting,
		RequestStatusVotingInProgress,
		RequestStatusVotingCompleted,
		RequestStatusAdminApproved,
	}
}

func (s RequestStatus) IsTerminal() bool {
	_, ok := transitions[s]
	return !ok
}

func (s RequestStatus) IsKnown() bool {
	switch s {
	case RequestStatusPendingVoting,
		RequestStatusVotingInProgress,
		RequestStatusVotingCompleted,
		RequestStatusVotingRejected,
		RequestStatusAdminApproved,
		RequestStatusAdminRejected,
		RequestStatusReleased,
		RequestStatusCancelled:
		return true
	default:
		return false
	}
}

func CanTransition(from RequestStatus, to RequestStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// VotingDue reports whether a voting window has expired by now. The end date
// is exclusive: a vote at exactly the end is late.
func (r WithdrawalRequest) VotingDue(now time.Time) bool {
	return r.Status == RequestStatusVotingInProgress &&
		r.VotingEndDate != nil &&
		!now.UTC().Before(r.VotingEndDate.UTC())
}

func (r WithdrawalRequest) AcceptsVotesAt(now time.Time) bool {
	return r.Status == RequestStatusVotingInProgress &&
		r.VotingEndDate != nil &&
		now.UTC().Before(r.VotingEndDate.UTC())
}

func ValidReason(reason string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(reason)) >= MinReasonLength
}
