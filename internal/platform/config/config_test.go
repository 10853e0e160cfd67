package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "fundgate" || cfg.HTTPPort != "8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.VotingDuration != 7*24*time.Hour {
		t.Fatalf("expected 7d voting duration, got %s", cfg.VotingDuration)
	}
	if cfg.UseSandboxGateway {
		t.Fatalf("sandbox gateway must be opt-in")
	}
	if diff := cmp.Diff([]int{25, 50, 75, 100}, cfg.MilestonePercentages); diff != "" {
		t.Fatalf("milestone percentages mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fundgate.yaml")
	raw := []byte(`
service:
  name: escrow-api
  http_port: "9000"
dependencies:
  kafka_brokers: ["kafka-1:9092", " kafka-2:9092 "]
payment:
  use_sandbox: true
governance:
  voting_duration: 72h
  approval_threshold: "60"
  forward_below_threshold: true
  milestone_percentages: [50, 100]
workers:
  batch_size: 25
log:
  level: debug
  file: /var/log/fundgate.log
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("VOTING_START_DELAY", "30m")
	t.Setenv("MILESTONE_PERCENTAGES", "20, 40")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "escrow-api" {
		t.Fatalf("expected file service name, got %q", cfg.ServiceName)
	}
	if cfg.HTTPPort != "9100" {
		t.Fatalf("expected env to win for http port, got %q", cfg.HTTPPort)
	}
	if diff := cmp.Diff([]string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers); diff != "" {
		t.Fatalf("brokers mismatch (-want +got):\n%s", diff)
	}
	if cfg.VotingDuration != 72*time.Hour || cfg.VotingStartDelay != 30*time.Minute {
		t.Fatalf("unexpected voting window config: %s / %s", cfg.VotingDuration, cfg.VotingStartDelay)
	}
	if cfg.ApprovalThreshold != "60" || !cfg.ForwardBelowThreshold {
		t.Fatalf("unexpected threshold config: %q forward=%v", cfg.ApprovalThreshold, cfg.ForwardBelowThreshold)
	}
	if diff := cmp.Diff([]int{20, 40}, cfg.MilestonePercentages); diff != "" {
		t.Fatalf("milestones mismatch (-want +got):\n%s", diff)
	}
	if !cfg.UseSandboxGateway {
		t.Fatalf("expected payment.use_sandbox to be read from file")
	}
	if cfg.BatchSize != 25 || cfg.LogLevel != "debug" || cfg.LogFile != "/var/log/fundgate.log" {
		t.Fatalf("unexpected worker/log config: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("governance:\n  voting_duration: soon\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected duration parse error")
	}

	t.Setenv("APPROVAL_THRESHOLD_PERCENT", "150")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected threshold validation error")
	}
}
