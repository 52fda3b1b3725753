package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QG_DB_PATH", "/tmp/qg-test.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/qg-test.db" {
		t.Fatalf("db path=%q", cfg.DBPath)
	}
	if cfg.Workers != 4 {
		t.Fatalf("workers=%d, want 4", cfg.Workers)
	}
	if cfg.QueueSize != 64 {
		t.Fatalf("queue=%d, want 64", cfg.QueueSize)
	}
	if cfg.SweepInterval != time.Minute {
		t.Fatalf("sweep interval=%v, want 1m", cfg.SweepInterval)
	}
	if cfg.ListenAddr != ":8089" {
		t.Fatalf("listen addr=%q", cfg.ListenAddr)
	}
}

func TestLoadFallsBackToHomeDB(t *testing.T) {
	t.Setenv("QG_DB_PATH", "")
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.HasSuffix(cfg.DBPath, ".questguild.db") {
		t.Fatalf("db path=%q, want default file", cfg.DBPath)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("QG_WORKERS", "many")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLocation(t *testing.T) {
	loc, err := Config{Timezone: "UTC"}.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc != time.UTC {
		t.Fatalf("location=%v, want UTC", loc)
	}
	if loc, _ := (Config{}).Location(); loc != time.Local {
		t.Fatalf("empty timezone should resolve to Local, got %v", loc)
	}
	if _, err := (Config{Timezone: "Mars/Olympus"}).Location(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
