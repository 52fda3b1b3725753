package root

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func run(t *testing.T, db string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--db", db, "--user", "ada", "--tz", "UTC"}, args...))
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("qg %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestTaskRoundTrip(t *testing.T) {
	t.Setenv("QG_OTEL_ENABLED", "false")
	db := filepath.Join(t.TempDir(), "cli.db")

	if out := run(t, db, "register", "Ada"); !strings.Contains(out, "Ada") {
		t.Fatalf("register output=%q", out)
	}
	if out := run(t, db, "task", "add", "water plants", "--diff", "easy", "--imp", "normal"); !strings.Contains(out, "worth 4 XP") {
		t.Fatalf("add output=%q", out)
	}
	if out := run(t, db, "task", "list"); !strings.Contains(out, "water plants") {
		t.Fatalf("list output=%q", out)
	}
	if out := run(t, db, "task", "do", "1"); !strings.Contains(out, "+4 XP") {
		t.Fatalf("do output=%q", out)
	}
	if out := run(t, db, "status"); !strings.Contains(out, "Beginner") {
		t.Fatalf("status output=%q", out)
	}
}

func TestParseWhen(t *testing.T) {
	cfg.Timezone = "UTC"
	got, err := parseWhen("2026-03-04 09:30")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if want := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if zero, _ := parseWhen(""); !zero.IsZero() {
		t.Fatalf("empty should be zero, got %v", zero)
	}
	if _, err := parseWhen("next tuesday"); err == nil {
		t.Fatal("expected an error for free text")
	}
}
