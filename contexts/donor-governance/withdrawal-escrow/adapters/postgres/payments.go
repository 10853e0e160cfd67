package postgresadapter

import (
	"context"
	"errors"
	"strings"

	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) GetDisbursementByRequest(
	ctx context.Context,
	requestID string,
) (entities.Disbursement, bool, error) {
	var row disbursementModel
	err := r.db.WithContext(ctx).
		Where("request_id = ?", strings.TrimSpace(requestID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Disbursement{}, false, nil
		}
		return entities.Disbursement{}, false, r.logError("escrow_repo_get_disbursement_failed", err,
			"request_id", strings.TrimSpace(requestID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) GetDisbursementByKey(ctx context.Context, idempotencyKey string) (entities.Disbursement, error) {
	var row disbursementModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", strings.TrimSpace(idempotencyKey)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Disbursement{}, domainerrors.ErrDisbursementNotFound
		}
		return entities.Disbursement{}, r.logError("escrow_repo_get_disbursement_by_key_failed", err,
			"idempotency_key", strings.TrimSpace(idempotencyKey),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) SaveDisbursement(ctx context.Context, disbursement entities.Disbursement) error {
	row := disbursementModelFromEntity(disbursement)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "disbursement_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"transaction_id": row.TransactionID,
			"status":         row.Status,
			"failure_reason": row.FailureReason,
			"attempts":       row.Attempts,
			"updated_at":     row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("escrow_repo_save_disbursement_failed", create.Error,
			"disbursement_id", row.DisbursementID,
			"request_id", row.RequestID,
		)
	}
	return nil
}

func (r *Repository) CreateRefundCases(
	ctx context.Context,
	cases []entities.RefundCase,
	events []ports.EventEnvelope,
) error {
	rows := make([]refundCaseModel, 0, len(cases))
	for _, item := range cases {
		rows = append(rows, refundCaseModelFromEntity(item))
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		create := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "donation_id"}, {Name: "refund_method"}},
			DoNothing: true,
		}).Create(&rows)
		if create.Error != nil {
			return create.Error
		}
		// A run that only repeats existing cases announces nothing.
		if create.RowsAffected == 0 {
			return nil
		}
		for _, event := range events {
			if err := appendOutbox(tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrIdempotencyConflict) {
			return err
		}
		return r.logError("escrow_repo_create_refund_cases_failed", err, "case_count", len(rows))
	}
	return nil
}

func (r *Repository) GetRefundCase(ctx context.Context, caseID string) (entities.RefundCase, error) {
	var row refundCaseModel
	err := r.db.WithContext(ctx).
		Where("case_id = ?", strings.TrimSpace(caseID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.RefundCase{}, domainerrors.ErrRefundCaseNotFound
		}
		return entities.RefundCase{}, r.logError("escrow_repo_get_refund_case_failed", err,
			"case_id", strings.TrimSpace(caseID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListRefundCasesByCampaign(ctx context.Context, campaignID string) ([]entities.RefundCase, error) {
	var rows []refundCaseModel
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		Order("donation_id ASC").
		Order("refund_method ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("escrow_repo_list_refund_cases_failed", err,
			"campaign_id", strings.TrimSpace(campaignID),
		)
	}
	return toRefundCaseEntities(rows), nil
}

func (r *Repository) ListDispatchableRefundCases(ctx context.Context, limit int) ([]entities.RefundCase, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []refundCaseModel
	if err := r.db.WithContext(ctx).
		Where("refund_method = ?", string(entities.RefundMethodEscrow)).
		Where("refunded_amount > 0").
		Where(
			r.db.Where("status = ?", string(entities.RefundStatusFailed)).
				Or("status = ? AND refund_transaction_id = ''", string(entities.RefundStatusPending)),
		).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("escrow_repo_list_dispatchable_refund_cases_failed", err, "limit", limit)
	}
	return toRefundCaseEntities(rows), nil
}

func (r *Repository) SaveRefundCase(
	ctx context.Context,
	refundCase entities.RefundCase,
	events ...ports.EventEnvelope,
) error {
	row := refundCaseModelFromEntity(refundCase)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&refundCaseModel{}).
			Where("case_id = ?", row.CaseID).
			Updates(map[string]any{
				"status":                row.Status,
				"refund_transaction_id": row.RefundTransactionID,
				"failure_reason":        row.FailureReason,
				"attempts":              row.Attempts,
				"updated_at":            row.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrRefundCaseNotFound
		}
		for _, event := range events {
			if err := appendOutbox(tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrRefundCaseNotFound) || errors.Is(err, domainerrors.ErrIdempotencyConflict) {
			return err
		}
		return r.logError("escrow_repo_save_refund_case_failed", err, "case_id", row.CaseID)
	}
	return nil
}
