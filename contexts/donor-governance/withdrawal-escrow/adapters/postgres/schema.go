package postgresadapter

import (
	"context"

	"gorm.io/gorm"
)

// schemaStatements are idempotent and applied in order by Migrate. campaigns
// and donations are projections fed by the campaign and donation services.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS campaigns (
	campaign_id TEXT PRIMARY KEY,
	creator_id TEXT NOT NULL,
	goal_amount BIGINT NOT NULL,
	current_amount BIGINT NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

	CONSTRAINT campaigns_current_amount_nonneg CHECK (current_amount >= 0)
)`,
	`CREATE TABLE IF NOT EXISTS donations (
	donation_id TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL,
	donor_id TEXT NOT NULL,
	amount BIGINT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

	CONSTRAINT donations_amount_positive CHECK (amount > 0)
)`,
	`CREATE INDEX IF NOT EXISTS donations_campaign_donor_idx ON donations (campaign_id, donor_id)`,
	`CREATE TABLE IF NOT EXISTS campaign_ledger_applied (
	ledger_key TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL,
	amount BIGINT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS withdrawal_requests (
	request_id TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL,
	requested_by TEXT NOT NULL,
	amount BIGINT NOT NULL,
	reason TEXT NOT NULL,
	status TEXT NOT NULL,
	voting_start_date TIMESTAMPTZ NOT NULL,
	voting_end_date TIMESTAMPTZ,
	auto_created BOOLEAN NOT NULL DEFAULT false,
	milestone_percentage INTEGER NOT NULL DEFAULT 0,
	admin_reviewed_at TIMESTAMPTZ,
	admin_reviewed_by TEXT NOT NULL DEFAULT '',
	admin_rejection_reason TEXT NOT NULL DEFAULT '',
	released_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

	CONSTRAINT withdrawal_requests_amount_positive CHECK (amount > 0)
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_withdrawal_requests_active_campaign
	ON withdrawal_requests (campaign_id)
	WHERE status IN ('pending_voting', 'voting_in_progress', 'voting_completed', 'admin_approved')`,
	`CREATE INDEX IF NOT EXISTS withdrawal_requests_status_start_idx ON withdrawal_requests (status, voting_start_date)`,
	`CREATE INDEX IF NOT EXISTS withdrawal_requests_status_end_idx ON withdrawal_requests (status, voting_end_date)`,
	`CREATE TABLE IF NOT EXISTS withdrawal_votes (
	vote_id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL REFERENCES withdrawal_requests(request_id),
	campaign_id TEXT NOT NULL,
	donor_id TEXT NOT NULL,
	vote_value TEXT NOT NULL,
	weight BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

	CONSTRAINT withdrawal_votes_value CHECK (vote_value IN ('approve', 'reject')),
	CONSTRAINT withdrawal_votes_weight_positive CHECK (weight > 0)
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_withdrawal_votes_request_donor ON withdrawal_votes (request_id, donor_id)`,
	`CREATE TABLE IF NOT EXISTS escrow_disbursements (
	disbursement_id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL REFERENCES withdrawal_requests(request_id),
	campaign_id TEXT NOT NULL,
	recipient_id TEXT NOT NULL,
	idempotency_key TEXT NOT NULL,
	transaction_id TEXT NOT NULL DEFAULT '',
	amount BIGINT NOT NULL,
	status TEXT NOT NULL,
	failure_reason TEXT NOT NULL DEFAULT '',
	attempts INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_escrow_disbursements_request ON escrow_disbursements (request_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_escrow_disbursements_key ON escrow_disbursements (idempotency_key)`,
	`CREATE TABLE IF NOT EXISTS refund_cases (
	case_id TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL,
	donor_id TEXT NOT NULL,
	donation_id TEXT NOT NULL,
	original_amount BIGINT NOT NULL,
	refunded_amount BIGINT NOT NULL,
	refund_ratio NUMERIC(12, 10) NOT NULL,
	remaining_refund BIGINT NOT NULL,
	status TEXT NOT NULL,
	refund_method TEXT NOT NULL,
	refund_transaction_id TEXT NOT NULL DEFAULT '',
	failure_reason TEXT NOT NULL DEFAULT '',
	attempts INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

	CONSTRAINT refund_cases_amounts CHECK (refunded_amount >= 0 AND remaining_refund >= 0)
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_refund_cases_donation_method ON refund_cases (donation_id, refund_method)`,
	`CREATE INDEX IF NOT EXISTS refund_cases_campaign_idx ON refund_cases (campaign_id)`,
	`CREATE TABLE IF NOT EXISTS escrow_idempotency (
	key TEXT PRIMARY KEY,
	request_hash TEXT NOT NULL,
	request_id TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS escrow_outbox (
	outbox_id TEXT PRIMARY KEY,
	sequence BIGSERIAL,
	event_type TEXT NOT NULL,
	partition_key TEXT NOT NULL,
	payload BYTEA NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ
)`,
	`CREATE INDEX IF NOT EXISTS escrow_outbox_pending_idx ON escrow_outbox (status, created_at, sequence)`,
	`CREATE TABLE IF NOT EXISTS escrow_event_dedup (
	event_id TEXT PRIMARY KEY,
	payload_hash TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL
)`,
}

func Migrate(ctx context.Context, db *gorm.DB) error {
	for _, statement := range schemaStatements {
		if err := db.WithContext(ctx).Exec(statement).Error; err != nil {
			return err
		}
	}
	return nil
}
