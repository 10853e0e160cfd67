package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestNewWritesJSONToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fundgate.log")
	logger, closer := New(Options{Level: "warn", File: path})

	logger.Info("suppressed", "event", "escrow_test")
	logger.Warn("kept", "event", "escrow_test", "module", "internal/platform/logging")
	if err := closer.Close(); err != nil {
		t.Fatalf("close log sink: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above warn level, got %d: %q", len(lines), raw)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["msg"] != "kept" || entry["event"] != "escrow_test" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info should be disabled at warn level")
	}
}
