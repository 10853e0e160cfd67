package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type RefundStatus string
type RefundMethod string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusCompleted RefundStatus = "completed"
	RefundStatusFailed    RefundStatus = "failed"
	RefundStatusPartial   RefundStatus = "partial"

	// RefundMethodEscrow pays back funds the platform still holds.
	RefundMethodEscrow RefundMethod = "escrow"
	// RefundMethodRecovery tracks the share already paid to the creator.
	RefundMethodRecovery RefundMethod = "recovery"
)

type RefundCase struct {
	CaseID              string
	CampaignID          string
	DonorID             string
	DonationID          string
	OriginalAmount      int64
	RefundedAmount      int64
	RefundRatio         decimal.Decimal
	RemainingRefund     int64
	Status              RefundStatus
	Method              RefundMethod
	RefundTransactionID string
	FailureReason       string
	Attempts            int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Dispatchable reports whether the case still needs a gateway refund call.
// A pending case with a transaction id is awaiting confirmation.
func (c RefundCase) Dispatchable() bool {
	if c.Method != RefundMethodEscrow || c.RefundedAmount <= 0 {
		return false
	}
	switch c.Status {
	case RefundStatusFailed:
		return true
	case RefundStatusPending:
		return c.RefundTransactionID == ""
	default:
		return false
	}
}

// SettledStatus is the status a confirmed escrow refund settles into.
func (c RefundCase) SettledStatus() RefundStatus {
	if c.RefundedAmount >= c.OriginalAmount {
		return RefundStatusCompleted
	}
	return RefundStatusPartial
}
