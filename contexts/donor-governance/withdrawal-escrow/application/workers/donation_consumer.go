package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "fundgate/contexts/donor-governance/withdrawal-escrow/application"
	"fundgate/contexts/donor-governance/withdrawal-escrow/application/commands"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
	"fundgate/internal/shared/events"
)

const (
	donationCompletedTopic = "donation.completed"
	defaultDonationCG      = "withdrawal-escrow-donation-cg"
)

// DonationConsumer evaluates funding milestones whenever the ledger reports
// a completed donation.
type DonationConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Requests      commands.RequestUseCase
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c DonationConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("donation consumer disabled by configuration",
			"event", "escrow_donation_consumer_disabled",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultDonationCG
	}
	if err := c.Subscriber.Subscribe(ctx, donationCompletedTopic, group, c.handleDonationCompleted); err != nil {
		logger.Error("donation consumer subscribe failed",
			"event", "escrow_donation_consumer_subscribe_failed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "worker",
			"topic", donationCompletedTopic,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("donation consumer subscription active",
		"event", "escrow_donation_consumer_started",
		"module", "donor-governance/withdrawal-escrow",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (c DonationConsumer) handleDonationCompleted(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, events.HashPayload(event.Data), c.now().Add(c.dedupTTL()))
	if err != nil {
		return err
	}
	if alreadyProcessed {
		logger.Debug("donation.completed replay skipped",
			"event", "escrow_donation_completed_replayed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	var payload struct {
		CampaignID string `json:"campaign_id"`
		DonationID string `json:"donation_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("donation.completed payload decode failed",
			"event", "escrow_donation_completed_decode_failed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	if strings.TrimSpace(payload.CampaignID) == "" {
		return nil
	}

	request, created, err := c.Requests.EvaluateMilestones(ctx, payload.CampaignID)
	if err != nil {
		logger.Error("milestone evaluation failed",
			"event", "escrow_milestone_evaluation_failed",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "worker",
			"event_id", event.EventID,
			"campaign_id", payload.CampaignID,
			"error", err.Error(),
		)
		return err
	}
	if created {
		logger.Info("milestone withdrawal request created",
			"event", "escrow_milestone_request_created",
			"module", "donor-governance/withdrawal-escrow",
			"layer", "worker",
			"event_id", event.EventID,
			"campaign_id", payload.CampaignID,
			"request_id", request.RequestID,
			"milestone_percentage", request.MilestonePercentage,
		)
	}
	return nil
}

func (c DonationConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}

func (c DonationConsumer) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock.Now().UTC()
}
