package entities

import "time"

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusPending   CampaignStatus = "pending"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Campaign is the funding projection read from the campaign service.
// CurrentAmount is net of funds already released to the creator.
type Campaign struct {
	CampaignID    string
	CreatorID     string
	GoalAmount    int64
	CurrentAmount int64
	Status        CampaignStatus
	UpdatedAt     time.Time
}

type DonationStatus string

const (
	DonationStatusPending           DonationStatus = "pending"
	DonationStatusCompleted         DonationStatus = "completed"
	DonationStatusRefunded          DonationStatus = "refunded"
	DonationStatusPartiallyRefunded DonationStatus = "partially_refunded"
)

type DonationRecord struct {
	DonationID string
	CampaignID string
	DonorID    string
	Amount     int64
	Status     DonationStatus
	CreatedAt  time.Time
}

// MilestoneThreshold is the amount a campaign must reach to cross pct.
func (c Campaign) MilestoneThreshold(pct int) int64 {
	return c.GoalAmount * int64(pct) / 100
}
