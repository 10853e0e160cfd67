package db

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestConnectRequiresDSN(t *testing.T) {
	if _, err := Connect(context.Background(), "  ", PoolOptions{}); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestPoolOptionsDefaults(t *testing.T) {
	opts := PoolOptions{MaxOpenConns: 7}.withDefaults()
	if opts.MaxOpenConns != 7 || opts.MaxIdleConns != 5 || opts.ConnMaxLifetime != 30*time.Minute {
		t.Fatalf("unexpected pool defaults: %+v", opts)
	}
	if opts.PingTimeout != 5*time.Second || opts.SlowQuery != 500*time.Millisecond || opts.Logger == nil {
		t.Fatalf("unexpected timing defaults: %+v", opts)
	}
}

func TestSlogWriterTagsGormLines(t *testing.T) {
	var buf bytes.Buffer
	w := slogWriter{logger: slog.New(slog.NewTextHandler(&buf, nil))}
	w.Printf("%s [%.3fms] %s\n", "repository.go:42 SLOW SQL >= 500ms", 812.4, "SELECT 1")

	line := buf.String()
	if !strings.Contains(line, "event=db_gorm_log") || !strings.Contains(line, "SELECT 1") {
		t.Fatalf("unexpected log line: %s", line)
	}
}
