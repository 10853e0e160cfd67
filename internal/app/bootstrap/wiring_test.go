package bootstrap

import (
	"io"
	"log/slog"
	"testing"
	"time"

	paymentadapter "fundgate/contexts/donor-governance/withdrawal-escrow/adapters/payment"
	"fundgate/internal/platform/config"
)

func TestModuleSettingsFromConfig(t *testing.T) {
	cfg := config.Config{
		VotingDuration:        72 * time.Hour,
		VotingStartDelay:      time.Hour,
		ApprovalThreshold:     "62.5",
		ForwardBelowThreshold: true,
		MilestonePercentages:  []int{50, 100},
		PaymentRetryAttempts:  5,
		PaymentInitialBackoff: 100 * time.Millisecond,
		PaymentMaxBackoff:     time.Second,
		RefundPoolSize:        4,
		BatchSize:             50,
		KafkaGroup:            "escrow-cg",
	}

	settings, err := moduleSettings(cfg)
	if err != nil {
		t.Fatalf("module settings: %v", err)
	}
	if settings.ApprovalThreshold.String() != "62.5" {
		t.Fatalf("unexpected threshold: %s", settings.ApprovalThreshold)
	}
	if !settings.ForwardBelowThreshold || settings.Retry.Attempts != 5 || settings.ConsumerGroup != "escrow-cg" {
		t.Fatalf("unexpected settings: %+v", settings)
	}

	cfg.ApprovalThreshold = "half"
	if _, err := moduleSettings(cfg); err == nil {
		t.Fatalf("expected threshold parse error")
	}
}

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":               ":8080",
		"9090":           ":9090",
		":7000":          ":7000",
		"127.0.0.1:8081": "127.0.0.1:8081",
	}
	for in, want := range cases {
		if got := normalizeAddr(in); got != want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildGatewayRequiresURLOrSandboxFlag(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if gw, err := buildGateway(config.Config{}, logger); err == nil {
		t.Fatalf("expected startup error without gateway url, got %T", gw)
	}

	gw, err := buildGateway(config.Config{UseSandboxGateway: true}, logger)
	if err != nil {
		t.Fatalf("sandbox gateway: %v", err)
	}
	if _, ok := gw.(*paymentadapter.SandboxGateway); !ok {
		t.Fatalf("expected sandbox gateway, got %T", gw)
	}

	gw, err = buildGateway(config.Config{PaymentGatewayURL: "https://payments.internal", PaymentTimeout: time.Second}, logger)
	if err != nil {
		t.Fatalf("http gateway: %v", err)
	}
	if _, ok := gw.(*paymentadapter.HTTPGateway); !ok {
		t.Fatalf("expected http gateway, got %T", gw)
	}
}
