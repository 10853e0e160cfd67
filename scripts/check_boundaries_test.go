package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore cwd: %v", err)
		}
	})
}

func writeSource(t *testing.T, path string, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestCollectViolations(t *testing.T) {
	chdir(t, t.TempDir())
	const service = "contexts/donor-governance/withdrawal-escrow/"

	writeSource(t, service+"domain/services/tally.go", `package services

import (
	"time"

	"github.com/shopspring/decimal"
	"fundgate/contexts/donor-governance/withdrawal-escrow/domain/entities"
)
`)
	writeSource(t, service+"domain/entities/bad_domain.go", `package entities

import "gorm.io/gorm"
`)
	writeSource(t, service+"ports/bad_ports.go", `package ports

import "fundgate/contexts/donor-governance/withdrawal-escrow/application/commands"
`)
	writeSource(t, service+"application/commands/ok.go", `package commands

import (
	"github.com/panjf2000/ants/v2"
	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
	"fundgate/internal/shared/events"
)
`)
	writeSource(t, service+"application/commands/bad_app.go", `package commands

import (
	"fundgate/contexts/donor-governance/withdrawal-escrow/adapters/postgres"
	"fundgate/internal/platform/db"
	"fundgate/contexts/other/service/ports"
)
`)
	writeSource(t, service+"module.go", `package withdrawalescrow

import "fundgate/contexts/donor-governance/withdrawal-escrow/adapters/memory"
`)

	got := map[string][]string{}
	for _, v := range collectViolations("contexts", "fundgate") {
		got[filepath.Base(v.File)] = append(got[filepath.Base(v.File)], v.Rule)
	}
	for _, clean := range []string{"tally.go", "ok.go", "module.go"} {
		if len(got[clean]) != 0 {
			t.Fatalf("unexpected violations in %s: %v", clean, got[clean])
		}
	}
	if len(got["bad_domain.go"]) != 1 || len(got["bad_ports.go"]) != 1 {
		t.Fatalf("expected one violation each for domain and ports: %v", got)
	}
	if len(got["bad_app.go"]) != 4 {
		t.Fatalf("expected adapter, platform and cross-service violations: %v", got["bad_app.go"])
	}
	if !strings.Contains(strings.Join(got["bad_app.go"], ","), "reaches into another service") {
		t.Fatalf("cross-service import not reported: %v", got["bad_app.go"])
	}
}

func TestIsStdlib(t *testing.T) {
	if !isStdlib("net/http", "fundgate") ||
		isStdlib("github.com/go-chi/chi/v5", "fundgate") ||
		isStdlib("fundgate/internal/shared/events", "fundgate") {
		t.Fatalf("isStdlib misclassified an import")
	}
}
