package services

import (
	"sort"

	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"

	"github.com/shopspring/decimal"
)

type RefundShare struct {
	DonationID string
	DonorID    string
	Original   int64
	Refunded   int64
	Remaining  int64
}

type RefundPlan struct {
	Recoverable int64
	Base        int64
	Allocated   int64
	Ratio       decimal.Decimal
	Shares      []RefundShare
}

// AllocateRefunds splits the recoverable balance across completed donations
// in proportion to their amounts. Shares are floored and the leftover minor
// units go to the largest remainders, so Allocated equals
// min(recoverable, base) exactly and never exceeds it.
func AllocateRefunds(recoverable int64, donations []entities.DonationRecord) RefundPlan {
	eligible := make([]entities.DonationRecord, 0, len(donations))
	var base int64
	for _, donation := range donations {
		if donation.Status != entities.DonationStatusCompleted || donation.Amount <= 0 {
			continue
		}
		eligible = append(eligible, donation)
		base += donation.Amount
	}

	plan := RefundPlan{
		Recoverable: recoverable,
		Base:        base,
		Ratio:       decimal.Zero,
	}
	if base == 0 {
		return plan
	}

	pool := recoverable
	if pool < 0 {
		pool = 0
	}
	if pool > base {
		pool = base
	}
	plan.Ratio = decimal.NewFromInt(pool).DivRound(decimal.NewFromInt(base), 10)

	poolDec := decimal.NewFromInt(pool)
	baseDec := decimal.NewFromInt(base)
	remainders := make([]decimal.Decimal, len(eligible))
	plan.Shares = make([]RefundShare, len(eligible))
	var allocated int64
	for i, donation := range eligible {
		quotient, remainder := decimal.NewFromInt(donation.Amount).Mul(poolDec).QuoRem(baseDec, 0)
		share := quotient.IntPart()
		remainders[i] = remainder
		allocated += share
		plan.Shares[i] = RefundShare{
			DonationID: donation.DonationID,
			DonorID:    donation.DonorID,
			Original:   donation.Amount,
			Refunded:   share,
		}
	}

	order := make([]int, len(eligible))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		cmp := remainders[order[a]].Cmp(remainders[order[b]])
		if cmp != 0 {
			return cmp > 0
		}
		return plan.Shares[order[a]].DonationID < plan.Shares[order[b]].DonationID
	})
	for leftover, i := pool-allocated, 0; leftover > 0 && i < len(order); i++ {
		if remainders[order[i]].IsZero() {
			break
		}
		plan.Shares[order[i]].Refunded++
		allocated++
		leftover--
	}

	for i := range plan.Shares {
		plan.Shares[i].Remaining = plan.Shares[i].Original - plan.Shares[i].Refunded
	}
	plan.Allocated = allocated
	return plan
}
