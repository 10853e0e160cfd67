package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
	domainerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	sequence  int64
	published bool
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// Store is the in-memory implementation of every escrow port. A single
// mutex serializes writes, which gives the same guarantees the Postgres
// adapter gets from row locks and the partial unique index.
type Store struct {
	mu sync.RWMutex

	requests      map[string]entities.WithdrawalRequest
	votes         map[string]entities.Vote
	disbursements map[string]entities.Disbursement
	refundCases   map[string]entities.RefundCase

	campaigns       map[string]entities.Campaign
	donations       map[string]entities.DonationRecord
	appliedBalances map[string]struct{}

	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
	eventDedup  map[string]dedupRecord
	sequence    int64

	clockMu sync.RWMutex
	clock   func() time.Time
}

func NewStore() *Store {
	return &Store{
		requests:        make(map[string]entities.WithdrawalRequest),
		votes:           make(map[string]entities.Vote),
		disbursements:   make(map[string]entities.Disbursement),
		refundCases:     make(map[string]entities.RefundCase),
		campaigns:       make(map[string]entities.Campaign),
		donations:       make(map[string]entities.DonationRecord),
		appliedBalances: make(map[string]struct{}),
		idempotency:     make(map[string]ports.IdempotencyRecord),
		outbox:          make(map[string]outboxRecord),
		eventDedup:      make(map[string]dedupRecord),
	}
}

func (s *Store) SetCampaign(campaign entities.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign.CampaignID = strings.TrimSpace(campaign.CampaignID)
	s.campaigns[campaign.CampaignID] = campaign
}

// AddDonation records a donation; a completed one is added to the campaign
// balance the way the donation ledger would.
func (s *Store) AddDonation(donation entities.DonationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	donation.DonationID = strings.TrimSpace(donation.DonationID)
	s.donations[donation.DonationID] = donation
	if donation.Status != entities.DonationStatusCompleted {
		return
	}
	if campaign, ok := s.campaigns[donation.CampaignID]; ok {
		campaign.CurrentAmount += donation.Amount
		s.campaigns[donation.CampaignID] = campaign
	}
}

func (s *Store) SetRequest(request entities.WithdrawalRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[strings.TrimSpace(request.RequestID)] = request
}

func (s *Store) GetDonation(donationID string) (entities.DonationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	donation, ok := s.donations[strings.TrimSpace(donationID)]
	return donation, ok
}

func (s *Store) CreateRequest(_ context.Context, request entities.WithdrawalRequest, event ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[request.RequestID]; exists {
		return domainerrors.ErrConflict
	}
	for _, existing := range s.requests {
		if existing.CampaignID == request.CampaignID && !existing.Status.IsTerminal() {
			return domainerrors.ErrPendingRequestExists
		}
	}
	if err := s.appendOutboxLocked(event); err != nil {
		return err
	}
	s.requests[request.RequestID] = request
	return nil
}

func (s *Store) GetRequest(_ context.Context, requestID string) (entities.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[strings.TrimSpace(requestID)]
	if !ok {
		return entities.WithdrawalRequest{}, domainerrors.ErrRequestNotFound
	}
	return request, nil
}

func (s *Store) ListRequestsByCampaign(_ context.Context, campaignID string) ([]entities.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.WithdrawalRequest, 0)
	for _, request := range s.requests {
		if request.CampaignID == strings.TrimSpace(campaignID) {
			items = append(items, request)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].RequestID < items[j].RequestID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) ListDueRequests(
	_ context.Context,
	status entities.RequestStatus,
	now time.Time,
	limit int,
) ([]entities.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.WithdrawalRequest, 0)
	for _, request := range s.requests {
		if request.Status != status {
			continue
		}
		if due := dueAt(request); !due.IsZero() && !due.After(now.UTC()) {
			items = append(items, request)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return dueAt(items[i]).Before(dueAt(items[j]))
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) TransitionRequest(
	_ context.Context,
	from entities.RequestStatus,
	next entities.WithdrawalRequest,
	events ...ports.EventEnvelope,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.requests[next.RequestID]
	if !ok {
		return false, domainerrors.ErrRequestNotFound
	}
	if current.Status != from {
		return false, nil
	}
	for _, event := range events {
		if err := s.appendOutboxLocked(event); err != nil {
			return false, err
		}
	}
	s.requests[next.RequestID] = next
	return true, nil
}

func (s *Store) CloseVotingWindow(
	_ context.Context,
	requestID string,
	now time.Time,
	decide ports.VotingDecider,
) (entities.WithdrawalRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[strings.TrimSpace(requestID)]
	if !ok {
		return entities.WithdrawalRequest{}, false, domainerrors.ErrRequestNotFound
	}
	if !request.VotingDue(now) {
		return request, false, nil
	}
	next, events, err := decide(request, s.votesForLocked(request.RequestID))
	if err != nil {
		return entities.WithdrawalRequest{}, false, err
	}
	for _, event := range events {
		if err := s.appendOutboxLocked(event); err != nil {
			return entities.WithdrawalRequest{}, false, err
		}
	}
	s.requests[request.RequestID] = next
	return next, true, nil
}

func (s *Store) SumRequestedAmount(_ context.Context, campaignID string, statuses []entities.RequestStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, request := range s.requests {
		if request.CampaignID != strings.TrimSpace(campaignID) {
			continue
		}
		for _, status := range statuses {
			if request.Status == status {
				total += request.Amount
				break
			}
		}
	}
	return total, nil
}

func (s *Store) HasMilestoneRequest(_ context.Context, campaignID string, milestonePercentage int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, request := range s.requests {
		if request.CampaignID == strings.TrimSpace(campaignID) &&
			request.AutoCreated &&
			request.MilestonePercentage == milestonePercentage {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpsertVote(
	_ context.Context,
	vote entities.Vote,
	castAt time.Time,
	event ports.EventEnvelope,
) (entities.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[vote.RequestID]
	if !ok {
		return entities.Vote{}, domainerrors.ErrRequestNotFound
	}
	if !request.AcceptsVotesAt(castAt) {
		if request.VotingEndDate != nil && !castAt.Before(request.VotingEndDate.UTC()) {
			return entities.Vote{}, domainerrors.ErrVotingWindowClosed
		}
		return entities.Vote{}, domainerrors.ErrIllegalTransition
	}

	key := voteKey(vote.RequestID, vote.DonorID)
	if existing, found := s.votes[key]; found {
		existing.Value = vote.Value
		existing.Weight = vote.Weight
		existing.UpdatedAt = vote.UpdatedAt
		vote = existing
	}
	if err := s.appendOutboxLocked(event); err != nil {
		return entities.Vote{}, err
	}
	s.votes[key] = vote
	return vote, nil
}

func (s *Store) ListVotesByRequest(_ context.Context, requestID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.votesForLocked(strings.TrimSpace(requestID)), nil
}

func (s *Store) GetDisbursementByRequest(_ context.Context, requestID string) (entities.Disbursement, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	disbursement, ok := s.disbursements[strings.TrimSpace(requestID)]
	return disbursement, ok, nil
}

func (s *Store) GetDisbursementByKey(_ context.Context, idempotencyKey string) (entities.Disbursement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, disbursement := range s.disbursements {
		if disbursement.IdempotencyKey == strings.TrimSpace(idempotencyKey) {
			return disbursement, nil
		}
	}
	return entities.Disbursement{}, domainerrors.ErrDisbursementNotFound
}

func (s *Store) SaveDisbursement(_ context.Context, disbursement entities.Disbursement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.disbursements[disbursement.RequestID]; ok &&
		existing.DisbursementID != disbursement.DisbursementID {
		return domainerrors.ErrConflict
	}
	s.disbursements[disbursement.RequestID] = disbursement
	return nil
}

func (s *Store) CreateRefundCases(_ context.Context, cases []entities.RefundCase, events []ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	taken := make(map[string]struct{}, len(s.refundCases))
	for _, existing := range s.refundCases {
		taken[existing.DonationID+"|"+string(existing.Method)] = struct{}{}
	}
	fresh := make([]entities.RefundCase, 0, len(cases))
	for _, item := range cases {
		key := item.DonationID + "|" + string(item.Method)
		if _, exists := taken[key]; exists {
			continue
		}
		taken[key] = struct{}{}
		fresh = append(fresh, item)
	}
	// A run that only repeats existing cases announces nothing.
	if len(fresh) == 0 {
		return nil
	}
	for _, event := range events {
		if err := s.appendOutboxLocked(event); err != nil {
			return err
		}
	}
	for _, item := range fresh {
		s.refundCases[item.CaseID] = item
	}
	return nil
}

func (s *Store) GetRefundCase(_ context.Context, caseID string) (entities.RefundCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.refundCases[strings.TrimSpace(caseID)]
	if !ok {
		return entities.RefundCase{}, domainerrors.ErrRefundCaseNotFound
	}
	return item, nil
}

func (s *Store) ListRefundCasesByCampaign(_ context.Context, campaignID string) ([]entities.RefundCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.RefundCase, 0)
	for _, item := range s.refundCases {
		if item.CampaignID == strings.TrimSpace(campaignID) {
			items = append(items, item)
		}
	}
	sortRefundCases(items)
	return items, nil
}

func (s *Store) ListDispatchableRefundCases(_ context.Context, limit int) ([]entities.RefundCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.RefundCase, 0)
	for _, item := range s.refundCases {
		if item.Dispatchable() {
			items = append(items, item)
		}
	}
	sortRefundCases(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) SaveRefundCase(_ context.Context, refundCase entities.RefundCase, events ...ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refundCases[refundCase.CaseID]; !ok {
		return domainerrors.ErrRefundCaseNotFound
	}
	for _, event := range events {
		if err := s.appendOutboxLocked(event); err != nil {
			return err
		}
	}
	s.refundCases[refundCase.CaseID] = refundCase
	return nil
}

func (s *Store) GetCampaign(_ context.Context, campaignID string) (entities.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	campaign, ok := s.campaigns[strings.TrimSpace(campaignID)]
	if !ok {
		return entities.Campaign{}, domainerrors.ErrCampaignNotFound
	}
	return campaign, nil
}

func (s *Store) DecrementBalance(_ context.Context, campaignID string, amount int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, applied := s.appliedBalances[key]; applied {
		return nil
	}
	campaign, ok := s.campaigns[strings.TrimSpace(campaignID)]
	if !ok {
		return domainerrors.ErrCampaignNotFound
	}
	if campaign.CurrentAmount < amount {
		return domainerrors.ErrAmountExceedsAvailable
	}
	campaign.CurrentAmount -= amount
	s.campaigns[campaign.CampaignID] = campaign
	s.appliedBalances[key] = struct{}{}
	return nil
}

func (s *Store) MarkCampaignCancelled(_ context.Context, campaignID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[strings.TrimSpace(campaignID)]
	if !ok {
		return false, domainerrors.ErrCampaignNotFound
	}
	if campaign.Status == entities.CampaignStatusCancelled {
		return false, nil
	}
	campaign.Status = entities.CampaignStatusCancelled
	campaign.UpdatedAt = at.UTC()
	s.campaigns[campaign.CampaignID] = campaign
	return true, nil
}

func (s *Store) CumulativeCompletedAmount(_ context.Context, campaignID string, donorID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, donation := range s.donations {
		if donation.CampaignID == strings.TrimSpace(campaignID) &&
			donation.DonorID == strings.TrimSpace(donorID) &&
			donation.Status == entities.DonationStatusCompleted {
			total += donation.Amount
		}
	}
	return total, nil
}

func (s *Store) ListCompletedDonations(_ context.Context, campaignID string) ([]entities.DonationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.DonationRecord, 0)
	for _, donation := range s.donations {
		if donation.CampaignID == strings.TrimSpace(campaignID) &&
			donation.Status == entities.DonationStatusCompleted {
			items = append(items, donation)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].DonationID < items[j].DonationID
	})
	return items, nil
}

func (s *Store) MarkDonationRefunded(_ context.Context, donationID string, status entities.DonationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	donation, ok := s.donations[strings.TrimSpace(donationID)]
	if !ok {
		return domainerrors.ErrInvalidInput
	}
	donation.Status = status
	s.donations[donation.DonationID] = donation
	return nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.idempotency[strings.TrimSpace(key)]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.IsZero() && now.UTC().After(record.ExpiresAt.UTC()) {
		delete(s.idempotency, strings.TrimSpace(key))
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(record.Key)
	if existing, ok := s.idempotency[key]; ok {
		if existing.RequestHash != record.RequestHash || existing.RequestID != record.RequestID {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	s.idempotency[key] = record
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendOutboxLocked(envelope)
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]outboxRecord, 0)
	for _, record := range s.outbox {
		if !record.published {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].sequence < records[j].sequence
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(records))
	for _, record := range records {
		items = append(items, record.message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	record.published = true
	s.outbox[strings.TrimSpace(outboxID)] = record
	return nil
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eventID = strings.TrimSpace(eventID)
	if existing, ok := s.eventDedup[eventID]; ok && s.Now().Before(existing.expiresAt) {
		if existing.payloadHash != payloadHash {
			return false, domainerrors.ErrConflict
		}
		return true, nil
	}
	s.eventDedup[eventID] = dedupRecord{
		payloadHash: payloadHash,
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

// SetClock overrides the wall clock the store hands out as ports.Clock.
func (s *Store) SetClock(clock func() time.Time) {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	s.clock = clock
}

func (s *Store) Now() time.Time {
	s.clockMu.RLock()
	clock := s.clock
	s.clockMu.RUnlock()
	if clock != nil {
		return clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) appendOutboxLocked(envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	s.sequence++
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
		sequence: s.sequence,
	}
	return nil
}

func (s *Store) votesForLocked(requestID string) []entities.Vote {
	items := make([]entities.Vote, 0)
	for _, vote := range s.votes {
		if vote.RequestID == requestID {
			items = append(items, vote)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].DonorID < items[j].DonorID
	})
	return items
}

func dueAt(request entities.WithdrawalRequest) time.Time {
	switch request.Status {
	case entities.RequestStatusPendingVoting:
		return request.VotingStartDate.UTC()
	case entities.RequestStatusVotingInProgress:
		if request.VotingEndDate == nil {
			return time.Time{}
		}
		return request.VotingEndDate.UTC()
	default:
		return request.UpdatedAt.UTC()
	}
}

func voteKey(requestID string, donorID string) string {
	return strings.TrimSpace(requestID) + "|" + strings.TrimSpace(donorID)
}

func sortRefundCases(items []entities.RefundCase) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].DonationID == items[j].DonationID {
			return items[i].Method < items[j].Method
		}
		return items[i].DonationID < items[j].DonationID
	})
}

var _ ports.RequestRepository = (*Store)(nil)
var _ ports.VoteRepository = (*Store)(nil)
var _ ports.DisbursementRepository = (*Store)(nil)
var _ ports.RefundRepository = (*Store)(nil)
var _ ports.CampaignLedger = (*Store)(nil)
var _ ports.DonationLedger = (*Store)(nil)
var _ ports.IdempotencyStore = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.EventDedupStore = (*Store)(nil)
