package ballotbox

import (
	"context"
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("ballotbox", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.Backend != BackendMemory {
		t.Fatalf("expected default backend memory, got %q", cfg.Backend)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("BALLOTBOX_BACKEND", "sqlite")
	fs := flag.NewFlagSet("ballotbox", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", "127.0.0.1:9999", "-sqlite-path", "/tmp/vote.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.Backend != BackendSQLite {
		t.Fatalf("expected backend sqlite, got %q", cfg.Backend)
	}
	if cfg.SQLitePath != "/tmp/vote.db" {
		t.Fatalf("expected sqlite path override, got %q", cfg.SQLitePath)
	}
}

func TestRunRejectsUnknownBackend(t *testing.T) {
	err := Run(context.Background(), Config{Backend: "etcd", SigningKey: "k"})
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestRunRequiresSigningKey(t *testing.T) {
	err := Run(context.Background(), Config{Backend: BackendMemory})
	if err == nil {
		t.Fatal("expected error for missing signing key")
	}
}
