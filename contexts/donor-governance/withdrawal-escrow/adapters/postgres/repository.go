package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const activeRequestIndex = "ux_withdrawal_requests_active_campaign"

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateRequest(
	ctx context.Context,
	request entities.WithdrawalRequest,
	event ports.EventEnvelope,
) error {
	row := requestModelFromEntity(request)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return appendOutbox(tx, event)
	})
	if err != nil {
		if isUniqueViolation(err) {
			if violatedConstraint(err) == activeRequestIndex {
				return domainerrors.ErrPendingRequestExists
			}
			return domainerrors.ErrConflict
		}
		if errors.Is(err, domainerrors.ErrIdempotencyConflict) {
			return err
		}
		return r.logError("escrow_repo_create_request_failed", err,
			"request_id", row.RequestID,
			"campaign_id", row.CampaignID,
		)
	}
	return nil
}

func (r *Repository) GetRequest(ctx context.Context, requestID string) (entities.WithdrawalRequest, error) {
	var row requestModel
	err := r.db.WithContext(ctx).
		Where("request_id = ?", strings.TrimSpace(requestID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.WithdrawalRequest{}, domainerrors.ErrRequestNotFound
		}
		return entities.WithdrawalRequest{}, r.logError("escrow_repo_get_request_failed", err,
			"request_id", strings.TrimSpace(requestID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListRequestsByCampaign(ctx context.Context, campaignID string) ([]entities.WithdrawalRequest, error) {
	var rows []requestModel
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		Order("created_at ASC").
		Order("request_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("escrow_repo_list_requests_by_campaign_failed", err,
			"campaign_id", strings.TrimSpace(campaignID),
		)
	}
	return toRequestEntities(rows), nil
}

func (r *Repository) ListDueRequests(
	ctx context.Context,
	status entities.RequestStatus,
	now time.Time,
	limit int,
) ([]entities.WithdrawalRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	column := dueColumn(status)
	var rows []requestModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Where(column+" IS NOT NULL").
		Where(column+" <= ?", now.UTC()).
		Order(column + " ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("escrow_repo_list_due_requests_failed", err,
			"status", string(status),
			"limit", limit,
		)
	}
	return toRequestEntities(rows), nil
}

func (r *Repository) TransitionRequest(
	ctx context.Context,
	from entities.RequestStatus,
	next entities.WithdrawalRequest,
	events ...ports.EventEnvelope,
) (bool, error) {
	row := requestModelFromEntity(next)
	swapped := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&requestModel{}).
			Where("request_id = ?", row.RequestID).
			Where("status = ?", string(from)).
			Updates(requestUpdates(row))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&requestModel{}).
				Where("request_id = ?", row.RequestID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domainerrors.ErrRequestNotFound
			}
			return nil
		}
		for _, event := range events {
			if err := appendOutbox(tx, event); err != nil {
				return err
			}
		}
		swapped = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrRequestNotFound) || errors.Is(err, domainerrors.ErrIdempotencyConflict) {
			return false, err
		}
		return false, r.logError("escrow_repo_transition_request_failed", err,
			"request_id", row.RequestID,
			"from_status", string(from),
			"to_status", row.Status,
		)
	}
	return swapped, nil
}

func (r *Repository) CloseVotingWindow(
	ctx context.Context,
	requestID string,
	now time.Time,
	decide ports.VotingDecider,
) (entities.WithdrawalRequest, bool, error) {
	var (
		result entities.WithdrawalRequest
		closed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row requestModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("request_id = ?", strings.TrimSpace(requestID)).
			First(&row).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrRequestNotFound
			}
			return err
		}
		request := row.toEntity()
		result = request
		if !request.VotingDue(now) {
			return nil
		}

		var voteRows []voteModel
		if err := tx.Where("request_id = ?", request.RequestID).
			Order("donor_id ASC").
			Find(&voteRows).Error; err != nil {
			return err
		}
		next, events, err := decide(request, toVoteEntities(voteRows))
		if err != nil {
			return err
		}

		nextRow := requestModelFromEntity(next)
		if err := tx.Model(&requestModel{}).
			Where("request_id = ?", nextRow.RequestID).
			Updates(requestUpdates(nextRow)).
			Error; err != nil {
			return err
		}
		for _, event := range events {
			if err := appendOutbox(tx, event); err != nil {
				return err
			}
		}
		result = next
		closed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrRequestNotFound) || errors.Is(err, domainerrors.ErrIdempotencyConflict) {
			return entities.WithdrawalRequest{}, false, err
		}
		return entities.WithdrawalRequest{}, false, r.logError("escrow_repo_close_voting_window_failed", err,
			"request_id", strings.TrimSpace(requestID),
		)
	}
	return result, closed, nil
}

func (r *Repository) SumRequestedAmount(
	ctx context.Context,
	campaignID string,
	statuses []entities.RequestStatus,
) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&requestModel{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		Where("status IN ?", values).
		Scan(&total).Error; err != nil {
		return 0, r.logError("escrow_repo_sum_requested_amount_failed", err,
			"campaign_id", strings.TrimSpace(campaignID),
		)
	}
	return total, nil
}

func (r *Repository) HasMilestoneRequest(ctx context.Context, campaignID string, milestonePercentage int) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&requestModel{}).
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		Where("auto_created = ?", true).
		Where("milestone_percentage = ?", milestonePercentage).
		Count(&count).Error; err != nil {
		return false, r.logError("escrow_repo_has_milestone_request_failed", err,
			"campaign_id", strings.TrimSpace(campaignID),
			"milestone_percentage", milestonePercentage,
		)
	}
	return count > 0, nil
}

func (r *Repository) UpsertVote(
	ctx context.Context,
	vote entities.Vote,
	castAt time.Time,
	event ports.EventEnvelope,
) (entities.Vote, error) {
	row := voteModelFromEntity(vote)
	var stored voteModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var requestRow requestModel
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Where("request_id = ?", row.RequestID).
			First(&requestRow).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrRequestNotFound
			}
			return err
		}
		request := requestRow.toEntity()
		if !request.AcceptsVotesAt(castAt) {
			if request.VotingEndDate != nil && !castAt.Before(request.VotingEndDate.UTC()) {
				return domainerrors.ErrVotingWindowClosed
			}
			return domainerrors.ErrIllegalTransition
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "request_id"}, {Name: "donor_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"vote_value": row.VoteValue,
				"weight":     row.Weight,
				"updated_at": row.UpdatedAt,
			}),
		}).Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("request_id = ?", row.RequestID).
			Where("donor_id = ?", row.DonorID).
			First(&stored).Error; err != nil {
			return err
		}
		return appendOutbox(tx, event)
	})
	if err != nil {
		switch {
		case errors.Is(err, domainerrors.ErrRequestNotFound),
			errors.Is(err, domainerrors.ErrVotingWindowClosed),
			errors.Is(err, domainerrors.ErrIllegalTransition),
			errors.Is(err, domainerrors.ErrIdempotencyConflict):
			return entities.Vote{}, err
		}
		return entities.Vote{}, r.logError("escrow_repo_upsert_vote_failed", err,
			"request_id", row.RequestID,
			"donor_id", row.DonorID,
		)
	}
	return stored.toEntity(), nil
}

func (r *Repository) ListVotesByRequest(ctx context.Context, requestID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", strings.TrimSpace(requestID)).
		Order("donor_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("escrow_repo_list_votes_by_request_failed", err,
			"request_id", strings.TrimSpace(requestID),
		)
	}
	return toVoteEntities(rows), nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "donor-governance/withdrawal-escrow",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("escrow repository operation failed", fields...)
	return err
}

func dueColumn(status entities.RequestStatus) string {
	switch status {
	case entities.RequestStatusPendingVoting:
		return "voting_start_date"
	case entities.RequestStatusVotingInProgress:
		return "voting_end_date"
	default:
		return "updated_at"
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func violatedConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

var _ ports.RequestRepository = (*Repository)(nil)
var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.DisbursementRepository = (*Repository)(nil)
var _ ports.RefundRepository = (*Repository)(nil)
var _ ports.CampaignLedger = (*Repository)(nil)
var _ ports.DonationLedger = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
