package withdrawalescrow

import (
	"log/slog"
	"time"

	httpadapter "fundgate/contexts/donor-governance/withdrawal-escrow/adapters/http"
	"fundgate/contexts/donor-governance/withdrawal-escrow/adapters/memory"
	paymentadapter "fundgate/contexts/donor-governance/withdrawal-escrow/adapters/payment"
	"fundgate/contexts/donor-governance/withdrawal-escrow/application/commands"
	"fundgate/contexts/donor-governance/withdrawal-escrow/application/queries"
	"fundgate/contexts/donor-governance/withdrawal-escrow/application/workers"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"

	"github.com/shopspring/decimal"
)

type Module struct {
	Handler httpadapter.Handler
	Workers Workers
	Store   *memory.Store
	Gateway *paymentadapter.SandboxGateway
}

type Workers struct {
	Sweeper        workers.VotingWindowSweeper
	OutboxRelay    workers.OutboxRelay
	ReleaseRetrier workers.ReleaseRetrier
	RefundRetrier  workers.RefundRetrier
	Donations      workers.DonationConsumer
}

type Settings struct {
	VotingDuration          time.Duration
	VotingStartDelay        time.Duration
	ApprovalThreshold       decimal.Decimal
	ForwardBelowThreshold   bool
	MilestonePercentages    []int
	IdempotencyTTL          time.Duration
	DedupTTL                time.Duration
	Retry                   commands.RetryPolicy
	RefundPoolSize          int
	BatchSize               int
	ConsumerGroup           string
	DisableDonationConsumer bool
}

type Dependencies struct {
	Requests      ports.RequestRepository
	Votes         ports.VoteRepository
	Disbursements ports.DisbursementRepository
	Refunds       ports.RefundRepository
	Campaigns     ports.CampaignLedger
	Donations     ports.DonationLedger
	Idempotency   ports.IdempotencyStore
	Outbox        ports.OutboxWriter
	OutboxStore   ports.OutboxRepository
	Gateway       ports.PaymentGateway
	Publisher     ports.EventPublisher
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	Settings      Settings
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) Module {
	settings := deps.Settings
	requestUseCase := commands.RequestUseCase{
		Requests:             deps.Requests,
		Campaigns:            deps.Campaigns,
		Idempotency:          deps.Idempotency,
		Clock:                deps.Clock,
		IDGen:                deps.IDGen,
		VotingStartDelay:     settings.VotingStartDelay,
		MilestonePercentages: settings.MilestonePercentages,
		IdempotencyTTL:       settings.IdempotencyTTL,
		Logger:               deps.Logger,
	}
	votingUseCase := commands.VotingUseCase{
		Requests:       deps.Requests,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		VotingDuration: settings.VotingDuration,
		Logger:         deps.Logger,
	}
	closer := commands.CloseVotingUseCase{
		Requests:              deps.Requests,
		Clock:                 deps.Clock,
		IDGen:                 deps.IDGen,
		ApprovalThreshold:     settings.ApprovalThreshold,
		ForwardBelowThreshold: settings.ForwardBelowThreshold,
		Logger:                deps.Logger,
	}
	voteUseCase := commands.VoteUseCase{
		Requests:  deps.Requests,
		Votes:     deps.Votes,
		Donations: deps.Donations,
		Closer:    closer,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	disbursements := commands.DisbursementUseCase{
		Requests:      deps.Requests,
		Disbursements: deps.Disbursements,
		Campaigns:     deps.Campaigns,
		Gateway:       deps.Gateway,
		Retry:         settings.Retry,
		Clock:         deps.Clock,
		IDGen:         deps.IDGen,
		Logger:        deps.Logger,
	}
	refunds := commands.RefundUseCase{
		Refunds:   deps.Refunds,
		Campaigns: deps.Campaigns,
		Donations: deps.Donations,
		Gateway:   deps.Gateway,
		Retry:     settings.Retry,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		PoolSize:  settings.RefundPoolSize,
		Logger:    deps.Logger,
	}
	review := commands.AdminReviewUseCase{
		Requests:      deps.Requests,
		Campaigns:     deps.Campaigns,
		Outbox:        deps.Outbox,
		Disbursements: disbursements,
		Refunds:       refunds,
		Clock:         deps.Clock,
		IDGen:         deps.IDGen,
		Logger:        deps.Logger,
	}
	requestQueries := queries.RequestQueryUseCase{
		Requests:  deps.Requests,
		Votes:     deps.Votes,
		Refunds:   deps.Refunds,
		Closer:    closer,
		Clock:     deps.Clock,
		Threshold: settings.ApprovalThreshold,
	}

	return Module{
		Handler: httpadapter.Handler{
			Requests:      requestUseCase,
			Voting:        votingUseCase,
			Votes:         voteUseCase,
			Review:        review,
			Disbursements: disbursements,
			Refunds:       refunds,
			Webhooks: commands.PaymentWebhookUseCase{
				Disbursements: disbursements,
				Refunds:       refunds,
				Logger:        deps.Logger,
			},
			Queries: requestQueries,
			Logger:  deps.Logger,
		},
		Workers: Workers{
			Sweeper: workers.VotingWindowSweeper{
				Requests:  deps.Requests,
				Voting:    votingUseCase,
				Closer:    closer,
				Clock:     deps.Clock,
				BatchSize: settings.BatchSize,
				Logger:    deps.Logger,
			},
			OutboxRelay: workers.OutboxRelay{
				Outbox:    deps.OutboxStore,
				Publisher: deps.Publisher,
				Clock:     deps.Clock,
				BatchSize: settings.BatchSize,
				Logger:    deps.Logger,
			},
			ReleaseRetrier: workers.ReleaseRetrier{
				Requests:      deps.Requests,
				Disbursements: disbursements,
				Clock:         deps.Clock,
				BatchSize:     settings.BatchSize,
				Logger:        deps.Logger,
			},
			RefundRetrier: workers.RefundRetrier{
				Refunds:   refunds,
				BatchSize: settings.BatchSize,
				Logger:    deps.Logger,
			},
			Donations: workers.DonationConsumer{
				Subscriber:    deps.Subscriber,
				Dedup:         deps.Dedup,
				Requests:      requestUseCase,
				Clock:         deps.Clock,
				ConsumerGroup: settings.ConsumerGroup,
				DedupTTL:      settings.DedupTTL,
				Disabled:      settings.DisableDonationConsumer || deps.Subscriber == nil,
				Logger:        deps.Logger,
			},
		},
	}
}

// NewInMemoryModule wires every port to one memory.Store and a sandbox
// gateway. Publisher and Subscriber stay nil, so the outbox relay and the
// donation consumer are inert until the caller provides a bus.
func NewInMemoryModule(settings Settings, logger *slog.Logger) Module {
	store := memory.NewStore()
	gateway := paymentadapter.NewSandboxGateway()
	if settings.IdempotencyTTL <= 0 {
		settings.IdempotencyTTL = 24 * time.Hour
	}
	module := NewModule(Dependencies{
		Requests:      store,
		Votes:         store,
		Disbursements: store,
		Refunds:       store,
		Campaigns:     store,
		Donations:     store,
		Idempotency:   store,
		Outbox:        store,
		OutboxStore:   store,
		Gateway:       gateway,
		Dedup:         store,
		Clock:         store,
		IDGen:         store,
		Settings:      settings,
		Logger:        logger,
	})
	module.Store = store
	module.Gateway = gateway
	return module
}
