package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	withdrawalescrow "fundgate/contexts/donor-governance/withdrawal-escrow"
	paymentadapter "fundgate/contexts/donor-governance/withdrawal-escrow/adapters/payment"
	postgresadapter "fundgate/contexts/donor-governance/withdrawal-escrow/adapters/postgres"
	redisadapter "fundgate/contexts/donor-governance/withdrawal-escrow/adapters/redis"
	"fundgate/contexts/donor-governance/withdrawal-escrow/application/commands"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
	"fundgate/internal/platform/cache"
	"fundgate/internal/platform/config"
	"fundgate/internal/platform/db"
	"fundgate/internal/platform/logging"
	"fundgate/internal/platform/messaging"

	"github.com/shopspring/decimal"
)

// runtime holds the infrastructure shared by the api and worker processes.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	module  withdrawalescrow.Module
	closers []io.Closer
}

type eventBus interface {
	ports.EventPublisher
	ports.EventSubscriber
}

func buildRuntime(ctx context.Context, configPath string, process string, withConsumer bool) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	rootLogger, logCloser := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	logger := rootLogger.With("service", cfg.ServiceName, "process", process)
	slog.SetDefault(logger)
	rt := &runtime{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		_ = rt.Close()
		return nil, errors.New("POSTGRES_DSN is required")
	}
	pg, err := db.Connect(ctx, cfg.PostgresDSN, db.PoolOptions{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		Logger:          logger,
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, pg)
	if cfg.AutoMigrate {
		if err := postgresadapter.Migrate(ctx, pg.DB); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}
	repo := postgresadapter.NewRepository(pg.DB, logger)

	var dedup ports.EventDedupStore = repo
	if strings.TrimSpace(cfg.RedisURL) != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, client)
		dedup = redisadapter.NewEventDedupStore(client, "", logger)
	}

	bus, err := rt.buildBus(withConsumer)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	settings, err := moduleSettings(cfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	settings.DisableDonationConsumer = !withConsumer || !cfg.EnableDonationConsumer

	gateway, err := buildGateway(cfg, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.module = withdrawalescrow.NewModule(withdrawalescrow.Dependencies{
		Requests:      repo,
		Votes:         repo,
		Disbursements: repo,
		Refunds:       repo,
		Campaigns:     repo,
		Donations:     repo,
		Idempotency:   repo,
		Outbox:        repo,
		OutboxStore:   repo,
		Gateway:       gateway,
		Publisher:     bus,
		Subscriber:    bus,
		Dedup:         dedup,
		Clock:         postgresadapter.SystemClock{},
		IDGen:         postgresadapter.UUIDGenerator{},
		Settings:      settings,
		Logger:        logger,
	})
	return rt, nil
}

func (rt *runtime) buildBus(withConsumer bool) (eventBus, error) {
	if rt.cfg.UseInProcessBus {
		rt.logger.Warn("using in-process event bus",
			"event", "bootstrap_in_process_bus",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return messaging.NewBus(rt.logger), nil
	}
	if !withConsumer {
		return nil, nil
	}
	broker, err := messaging.NewBroker(rt.cfg.KafkaBrokers, rt.cfg.KafkaTopicPrefix, rt.logger)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, broker)
	return broker, nil
}

// buildGateway refuses to start without a real gateway unless the sandbox was
// asked for explicitly; the sandbox settles transfers without moving money.
func buildGateway(cfg config.Config, logger *slog.Logger) (ports.PaymentGateway, error) {
	if cfg.UseSandboxGateway {
		logger.Warn("using sandbox payment gateway",
			"event", "bootstrap_sandbox_gateway",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return paymentadapter.NewSandboxGateway(), nil
	}
	if strings.TrimSpace(cfg.PaymentGatewayURL) == "" {
		return nil, errors.New("PAYMENT_GATEWAY_URL is required unless payment.use_sandbox is set")
	}
	return paymentadapter.NewHTTPGateway(paymentadapter.HTTPGatewayConfig{
		BaseURL: cfg.PaymentGatewayURL,
		APIKey:  cfg.PaymentGatewayAPIKey,
		Timeout: cfg.PaymentTimeout,
	}), nil
}

func moduleSettings(cfg config.Config) (withdrawalescrow.Settings, error) {
	threshold, err := decimal.NewFromString(strings.TrimSpace(cfg.ApprovalThreshold))
	if err != nil {
		return withdrawalescrow.Settings{}, fmt.Errorf("parse approval threshold: %w", err)
	}
	return withdrawalescrow.Settings{
		VotingDuration:        cfg.VotingDuration,
		VotingStartDelay:      cfg.VotingStartDelay,
		ApprovalThreshold:     threshold,
		ForwardBelowThreshold: cfg.ForwardBelowThreshold,
		MilestonePercentages:  cfg.MilestonePercentages,
		IdempotencyTTL:        cfg.IdempotencyTTL,
		DedupTTL:              cfg.EventDedupTTL,
		Retry: commands.RetryPolicy{
			Attempts:       cfg.PaymentRetryAttempts,
			InitialBackoff: cfg.PaymentInitialBackoff,
			MaxBackoff:     cfg.PaymentMaxBackoff,
		},
		RefundPoolSize: cfg.RefundPoolSize,
		BatchSize:      cfg.BatchSize,
		ConsumerGroup:  cfg.KafkaGroup,
	}, nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") || strings.Contains(value, ":") {
		return value
	}
	return ":" + value
}
