package postgresadapter

import (
	"context"
	"errors"
	"strings"
	"time"

	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) GetCampaign(ctx context.Context, campaignID string) (entities.Campaign, error) {
	var row campaignModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Campaign{}, domainerrors.ErrCampaignNotFound
		}
		return entities.Campaign{}, r.logError("escrow_repo_get_campaign_failed", err,
			"campaign_id", strings.TrimSpace(campaignID),
		)
	}
	return row.toEntity(), nil
}

// DecrementBalance records key in campaign_ledger_applied and debits the
// campaign in the same transaction, so a replayed key is a no-op.
func (r *Repository) DecrementBalance(ctx context.Context, campaignID string, amount int64, key string) error {
	campaignID = strings.TrimSpace(campaignID)
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied := ledgerAppliedModel{
			LedgerKey:  strings.TrimSpace(key),
			CampaignID: campaignID,
			Amount:     amount,
			AppliedAt:  now,
		}
		create := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ledger_key"}},
			DoNothing: true,
		}).Create(&applied)
		if create.Error != nil {
			return create.Error
		}
		if create.RowsAffected == 0 {
			return nil
		}

		result := tx.Model(&campaignModel{}).
			Where("campaign_id = ?", campaignID).
			Where("current_amount >= ?", amount).
			Updates(map[string]any{
				"current_amount": gorm.Expr("current_amount - ?", amount),
				"updated_at":     now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}
		var count int64
		if err := tx.Model(&campaignModel{}).Where("campaign_id = ?", campaignID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domainerrors.ErrCampaignNotFound
		}
		return domainerrors.ErrAmountExceedsAvailable
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrCampaignNotFound) || errors.Is(err, domainerrors.ErrAmountExceedsAvailable) {
			return err
		}
		return r.logError("escrow_repo_decrement_balance_failed", err,
			"campaign_id", campaignID,
			"ledger_key", strings.TrimSpace(key),
		)
	}
	return nil
}

func (r *Repository) MarkCampaignCancelled(ctx context.Context, campaignID string, at time.Time) (bool, error) {
	campaignID = strings.TrimSpace(campaignID)
	result := r.db.WithContext(ctx).
		Model(&campaignModel{}).
		Where("campaign_id = ?", campaignID).
		Where("status <> ?", string(entities.CampaignStatusCancelled)).
		Updates(map[string]any{
			"status":     string(entities.CampaignStatusCancelled),
			"updated_at": at.UTC(),
		})
	if result.Error != nil {
		return false, r.logError("escrow_repo_mark_campaign_cancelled_failed", result.Error,
			"campaign_id", campaignID,
		)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	if _, err := r.GetCampaign(ctx, campaignID); err != nil {
		return false, err
	}
	return false, nil
}

func (r *Repository) CumulativeCompletedAmount(ctx context.Context, campaignID string, donorID string) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&donationModel{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		Where("donor_id = ?", strings.TrimSpace(donorID)).
		Where("status = ?", string(entities.DonationStatusCompleted)).
		Scan(&total).Error; err != nil {
		return 0, r.logError("escrow_repo_cumulative_donations_failed", err,
			"campaign_id", strings.TrimSpace(campaignID),
			"donor_id", strings.TrimSpace(donorID),
		)
	}
	return total, nil
}

func (r *Repository) ListCompletedDonations(ctx context.Context, campaignID string) ([]entities.DonationRecord, error) {
	var rows []donationModel
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		Where("status = ?", string(entities.DonationStatusCompleted)).
		Order("donation_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("escrow_repo_list_completed_donations_failed", err,
			"campaign_id", strings.TrimSpace(campaignID),
		)
	}
	items := make([]entities.DonationRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) MarkDonationRefunded(ctx context.Context, donationID string, status entities.DonationStatus) error {
	result := r.db.WithContext(ctx).
		Model(&donationModel{}).
		Where("donation_id = ?", strings.TrimSpace(donationID)).
		Update("status", string(status))
	if result.Error != nil {
		return r.logError("escrow_repo_mark_donation_refunded_failed", result.Error,
			"donation_id", strings.TrimSpace(donationID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrInvalidInput
	}
	return nil
}
