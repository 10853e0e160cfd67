package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type VoteValue string

const (
	VoteValueApprove VoteValue = "approve"
	VoteValueReject  VoteValue = "reject"
)

func (v VoteValue) IsValid() bool {
	return v == VoteValueApprove || v == VoteValueReject
}

// Vote is one donor's current choice on a request. Weight is the donor's
// completed donation total at the last cast and is never recomputed.
type Vote struct {
	VoteID     string
	RequestID  string
	CampaignID string
	DonorID    string
	Value      VoteValue
	Weight     int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Tally struct {
	RequestID         string
	ApproveWeight     int64
	RejectWeight      int64
	ApproveVotes      int
	RejectVotes       int
	ApprovePercentage decimal.Decimal
}

func (t Tally) TotalWeight() int64 {
	return t.ApproveWeight + t.RejectWeight
}
