package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	GRPCPort    string

	PostgresDSN      string
	AutoMigrate      bool
	RedisURL         string
	KafkaBrokers     []string
	KafkaGroup       string
	KafkaTopicPrefix string
	UseInProcessBus  bool

	PaymentGatewayURL     string
	PaymentGatewayAPIKey  string
	UseSandboxGateway     bool
	PaymentTimeout        time.Duration
	PaymentRetryAttempts  int
	PaymentInitialBackoff time.Duration
	PaymentMaxBackoff     time.Duration

	VotingDuration        time.Duration
	VotingStartDelay      time.Duration
	ApprovalThreshold     string
	ForwardBelowThreshold bool
	MilestonePercentages  []int

	SweepInterval  time.Duration
	RelayInterval  time.Duration
	RetryInterval  time.Duration
	BatchSize      int
	RefundPoolSize int

	IdempotencyTTL time.Duration
	EventDedupTTL  time.Duration

	LogLevel string
	LogFile  string

	EnableDonationConsumer bool
}

type configFile struct {
	Service struct {
		Name     string `yaml:"name"`
		HTTPPort string `yaml:"http_port"`
		GRPCPort string `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresDSN      string   `yaml:"postgres_dsn"`
		AutoMigrate      *bool    `yaml:"auto_migrate"`
		RedisURL         string   `yaml:"redis_url"`
		KafkaBrokers     []string `yaml:"kafka_brokers"`
		KafkaGroup       string   `yaml:"kafka_consumer_group"`
		KafkaTopicPrefix string   `yaml:"kafka_topic_prefix"`
		UseInProcessBus  *bool    `yaml:"use_in_process_bus"`
	} `yaml:"dependencies"`
	Payment struct {
		GatewayURL     string `yaml:"gateway_url"`
		APIKey         string `yaml:"api_key"`
		UseSandbox     *bool  `yaml:"use_sandbox"`
		Timeout        string `yaml:"timeout"`
		RetryAttempts  int    `yaml:"retry_attempts"`
		InitialBackoff string `yaml:"initial_backoff"`
		MaxBackoff     string `yaml:"max_backoff"`
	} `yaml:"payment"`
	Governance struct {
		VotingDuration        string `yaml:"voting_duration"`
		VotingStartDelay      string `yaml:"voting_start_delay"`
		ApprovalThreshold     string `yaml:"approval_threshold"`
		ForwardBelowThreshold *bool  `yaml:"forward_below_threshold"`
		MilestonePercentages  []int  `yaml:"milestone_percentages"`
	} `yaml:"governance"`
	Workers struct {
		SweepInterval  string `yaml:"sweep_interval"`
		RelayInterval  string `yaml:"relay_interval"`
		RetryInterval  string `yaml:"retry_interval"`
		BatchSize      int    `yaml:"batch_size"`
		RefundPoolSize int    `yaml:"refund_pool_size"`
	} `yaml:"workers"`
	TTL struct {
		Idempotency string `yaml:"idempotency"`
		EventDedup  string `yaml:"event_dedup"`
	} `yaml:"ttl"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	FeatureFlags struct {
		EnableDonationConsumer *bool `yaml:"enable_donation_consumer"`
	} `yaml:"feature_flags"`
}

func defaults() Config {
	return Config{
		ServiceName:           "fundgate",
		HTTPPort:              "8080",
		GRPCPort:              "9090",
		AutoMigrate:           true,
		KafkaBrokers:          []string{"localhost:9092"},
		KafkaGroup:            "fundgate-escrow",
		PaymentTimeout:        10 * time.Second,
		PaymentRetryAttempts:  3,
		PaymentInitialBackoff: 200 * time.Millisecond,
		PaymentMaxBackoff:     2 * time.Second,
		VotingDuration:        7 * 24 * time.Hour,
		VotingStartDelay:      24 * time.Hour,
		ApprovalThreshold:     "50",
		MilestonePercentages:  []int{25, 50, 75, 100},
		SweepInterval:         time.Minute,
		RelayInterval:         2 * time.Second,
		RetryInterval:         30 * time.Second,
		BatchSize:             100,
		RefundPoolSize:        8,
		IdempotencyTTL:        7 * 24 * time.Hour,
		EventDedupTTL:         7 * 24 * time.Hour,
		LogLevel:              "info",

		EnableDonationConsumer: true,
	}
}

// Load applies defaults, then the optional YAML file at path, then
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := defaults()

	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.ServiceName, f.Service.Name)
	setString(&cfg.HTTPPort, f.Service.HTTPPort)
	setString(&cfg.GRPCPort, f.Service.GRPCPort)

	setString(&cfg.PostgresDSN, f.Dependencies.PostgresDSN)
	setBool(&cfg.AutoMigrate, f.Dependencies.AutoMigrate)
	setString(&cfg.RedisURL, f.Dependencies.RedisURL)
	if brokers := trimNonEmpty(f.Dependencies.KafkaBrokers); len(brokers) > 0 {
		cfg.KafkaBrokers = brokers
	}
	setString(&cfg.KafkaGroup, f.Dependencies.KafkaGroup)
	setString(&cfg.KafkaTopicPrefix, f.Dependencies.KafkaTopicPrefix)
	setBool(&cfg.UseInProcessBus, f.Dependencies.UseInProcessBus)

	setString(&cfg.PaymentGatewayURL, f.Payment.GatewayURL)
	setString(&cfg.PaymentGatewayAPIKey, f.Payment.APIKey)
	setBool(&cfg.UseSandboxGateway, f.Payment.UseSandbox)
	if f.Payment.RetryAttempts > 0 {
		cfg.PaymentRetryAttempts = f.Payment.RetryAttempts
	}
	setString(&cfg.ApprovalThreshold, f.Governance.ApprovalThreshold)
	setBool(&cfg.ForwardBelowThreshold, f.Governance.ForwardBelowThreshold)
	if len(f.Governance.MilestonePercentages) > 0 {
		cfg.MilestonePercentages = f.Governance.MilestonePercentages
	}
	if f.Workers.BatchSize > 0 {
		cfg.BatchSize = f.Workers.BatchSize
	}
	if f.Workers.RefundPoolSize > 0 {
		cfg.RefundPoolSize = f.Workers.RefundPoolSize
	}
	setString(&cfg.LogLevel, f.Log.Level)
	setString(&cfg.LogFile, f.Log.File)
	setBool(&cfg.EnableDonationConsumer, f.FeatureFlags.EnableDonationConsumer)

	durations := []struct {
		key    string
		raw    string
		target *time.Duration
	}{
		{"payment.timeout", f.Payment.Timeout, &cfg.PaymentTimeout},
		{"payment.initial_backoff", f.Payment.InitialBackoff, &cfg.PaymentInitialBackoff},
		{"payment.max_backoff", f.Payment.MaxBackoff, &cfg.PaymentMaxBackoff},
		{"governance.voting_duration", f.Governance.VotingDuration, &cfg.VotingDuration},
		{"governance.voting_start_delay", f.Governance.VotingStartDelay, &cfg.VotingStartDelay},
		{"workers.sweep_interval", f.Workers.SweepInterval, &cfg.SweepInterval},
		{"workers.relay_interval", f.Workers.RelayInterval, &cfg.RelayInterval},
		{"workers.retry_interval", f.Workers.RetryInterval, &cfg.RetryInterval},
		{"ttl.idempotency", f.TTL.Idempotency, &cfg.IdempotencyTTL},
		{"ttl.event_dedup", f.TTL.EventDedup, &cfg.EventDedupTTL},
	}
	for _, item := range durations {
		if strings.TrimSpace(item.raw) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(item.raw))
		if err != nil {
			return fmt.Errorf("parse %s: %w", item.key, err)
		}
		*item.target = parsed
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServiceName = envOrDefault("SERVICE_NAME", cfg.ServiceName)
	cfg.HTTPPort = envOrDefault("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envOrDefault("GRPC_PORT", cfg.GRPCPort)

	cfg.PostgresDSN = envOrDefault("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.AutoMigrate = envBool("POSTGRES_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaGroup)
	cfg.KafkaTopicPrefix = envOrDefault("KAFKA_TOPIC_PREFIX", cfg.KafkaTopicPrefix)
	cfg.UseInProcessBus = envBool("USE_IN_PROCESS_BUS", cfg.UseInProcessBus)

	cfg.PaymentGatewayURL = envOrDefault("PAYMENT_GATEWAY_URL", cfg.PaymentGatewayURL)
	cfg.PaymentGatewayAPIKey = envOrDefault("PAYMENT_GATEWAY_API_KEY", cfg.PaymentGatewayAPIKey)
	cfg.UseSandboxGateway = envBool("PAYMENT_USE_SANDBOX", cfg.UseSandboxGateway)
	cfg.PaymentTimeout = envDuration("PAYMENT_TIMEOUT", cfg.PaymentTimeout)
	cfg.PaymentRetryAttempts = envInt("PAYMENT_RETRY_ATTEMPTS", cfg.PaymentRetryAttempts)
	cfg.PaymentInitialBackoff = envDuration("PAYMENT_INITIAL_BACKOFF", cfg.PaymentInitialBackoff)
	cfg.PaymentMaxBackoff = envDuration("PAYMENT_MAX_BACKOFF", cfg.PaymentMaxBackoff)

	cfg.VotingDuration = envDuration("VOTING_DURATION", cfg.VotingDuration)
	cfg.VotingStartDelay = envDuration("VOTING_START_DELAY", cfg.VotingStartDelay)
	cfg.ApprovalThreshold = envOrDefault("APPROVAL_THRESHOLD_PERCENT", cfg.ApprovalThreshold)
	cfg.ForwardBelowThreshold = envBool("FORWARD_BELOW_THRESHOLD", cfg.ForwardBelowThreshold)
	cfg.MilestonePercentages = envIntCSV("MILESTONE_PERCENTAGES", cfg.MilestonePercentages)

	cfg.SweepInterval = envDuration("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.RelayInterval = envDuration("RELAY_INTERVAL", cfg.RelayInterval)
	cfg.RetryInterval = envDuration("RETRY_INTERVAL", cfg.RetryInterval)
	cfg.BatchSize = envInt("WORKER_BATCH_SIZE", cfg.BatchSize)
	cfg.RefundPoolSize = envInt("REFUND_POOL_SIZE", cfg.RefundPoolSize)

	cfg.IdempotencyTTL = envDuration("IDEMPOTENCY_TTL", cfg.IdempotencyTTL)
	cfg.EventDedupTTL = envDuration("EVENT_DEDUP_TTL", cfg.EventDedupTTL)

	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = envOrDefault("LOG_FILE", cfg.LogFile)

	cfg.EnableDonationConsumer = envBool("ENABLE_DONATION_CONSUMER", cfg.EnableDonationConsumer)
}

func (c Config) Validate() error {
	if c.VotingDuration <= 0 {
		return errors.New("voting duration must be positive")
	}
	if c.VotingStartDelay < 0 {
		return errors.New("voting start delay must not be negative")
	}
	threshold, err := strconv.ParseFloat(strings.TrimSpace(c.ApprovalThreshold), 64)
	if err != nil || threshold < 0 || threshold > 100 {
		return fmt.Errorf("approval threshold %q must be a percentage between 0 and 100", c.ApprovalThreshold)
	}
	for _, pct := range c.MilestonePercentages {
		if pct <= 0 || pct > 100 {
			return fmt.Errorf("milestone percentage %d out of range", pct)
		}
	}
	if c.BatchSize <= 0 {
		return errors.New("worker batch size must be positive")
	}
	return nil
}

func setString(target *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*target = trimmed
	}
}

func setBool(target *bool, value *bool) {
	if value != nil {
		*target = *value
	}
}

func envOrDefault(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	items := trimNonEmpty(strings.Split(raw, ","))
	if len(items) == 0 {
		return fallback
	}
	return items
}

func envIntCSV(name string, fallback []int) []int {
	items := envCSV(name, nil)
	if len(items) == 0 {
		return fallback
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		v, err := strconv.Atoi(item)
		if err != nil {
			return fallback
		}
		out = append(out, v)
	}
	return out
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
