package services

import (
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"

	"github.com/shopspring/decimal"
)

// DefaultApprovalThreshold is the approve percentage a window must reach.
var DefaultApprovalThreshold = decimal.NewFromInt(50)

var hundred = decimal.NewFromInt(100)

// ComputeTally sums stored vote weights. Weights are taken as recorded at
// cast time.
func ComputeTally(requestID string, votes []entities.Vote) entities.Tally {
	tally := entities.Tally{RequestID: requestID}
	for _, vote := range votes {
		switch vote.Value {
		case entities.VoteValueApprove:
			tally.ApproveWeight += vote.Weight
			tally.ApproveVotes++
		case entities.VoteValueReject:
			tally.RejectWeight += vote.Weight
			tally.RejectVotes++
		}
	}
	tally.ApprovePercentage = ApprovalPercentage(tally.ApproveWeight, tally.RejectWeight)
	return tally
}

// ApprovalPercentage returns approve/(approve+reject)*100 rounded to four
// places, or zero when nothing was cast. The rounded value is for display;
// MeetsThreshold decides.
func ApprovalPercentage(approveWeight int64, rejectWeight int64) decimal.Decimal {
	total := approveWeight + rejectWeight
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(approveWeight).
		Mul(hundred).
		DivRound(decimal.NewFromInt(total), 4)
}

// MeetsThreshold reports approve*100 >= threshold*(approve+reject) on the
// exact weights. An empty tally never passes.
func MeetsThreshold(tally entities.Tally, threshold decimal.Decimal) bool {
	total := tally.TotalWeight()
	if total <= 0 {
		return false
	}
	approve := decimal.NewFromInt(tally.ApproveWeight).Mul(hundred)
	return approve.GreaterThanOrEqual(threshold.Mul(decimal.NewFromInt(total)))
}

// DecideOutcome maps a closed window's tally to the next request status.
// With forwardBelowThreshold every window goes to admin review and the
// percentage is advisory only.
func DecideOutcome(
	tally entities.Tally,
	threshold decimal.Decimal,
	forwardBelowThreshold bool,
) entities.RequestStatus {
	if forwardBelowThreshold {
		return entities.RequestStatusVotingCompleted
	}
	if threshold.IsZero() {
		threshold = DefaultApprovalThreshold
	}
	if MeetsThreshold(tally, threshold) {
		return entities.RequestStatusVotingCompleted
	}
	return entities.RequestStatusVotingRejected
}
