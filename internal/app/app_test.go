package app

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"questguild/internal/config"
	"questguild/internal/engine"
	"questguild/internal/identity"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DBPath:    filepath.Join(t.TempDir(), "questguild.db"),
		User:      "ada",
		Timezone:  "UTC",
		Workers:   2,
		QueueSize: 8,
	}
}

func newApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), Options{
		Config: cfg,
		Logger: log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func TestFuturesDriveTheEngine(t *testing.T) {
	a := newApp(t, testConfig(t))
	defer a.Close()
	ctx := context.Background()

	c, err := Await(ctx, a.Register(ctx, "Ada"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if c.Level != 1 {
		t.Fatalf("level=%d, want 1", c.Level)
	}

	created, err := Await(ctx, a.CreateTask(ctx, engine.CreateTaskInput{
		Name:       "water plants",
		Difficulty: engine.DifficultyEasy,
		Importance: engine.ImportanceNormal,
	}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(created.TaskIDs) != 1 || created.XPValue != 4 {
		t.Fatalf("created=%+v", created)
	}

	done, err := Await(ctx, a.CompleteTask(ctx, created.TaskIDs[0]))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.XPAwarded != 4 || done.XPTotal != 4 {
		t.Fatalf("complete=%+v", done)
	}

	res := a.ListTasks(ctx, engine.StatusActive).Wait(ctx)
	if res.Err != nil || len(res.Value) != 0 {
		t.Fatalf("active tasks=%+v", res)
	}
}

func TestClosedAppRejectsWork(t *testing.T) {
	a := newApp(t, testConfig(t))
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := Await(context.Background(), a.Status(context.Background()))
	if !IsShutdown(err) {
		t.Fatalf("err=%v, want shutdown", err)
	}
}

func TestPrincipalPrefersContextThenToken(t *testing.T) {
	secret := "s3cret"
	token, err := identity.IssueToken("bea", []byte(secret), time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	cfg := config.Config{User: "ada", Token: token, JWTSecret: secret}
	p := Principal(cfg)

	ctx := context.Background()
	if id, _ := p.CurrentUserID(ctx); id != "bea" {
		t.Fatalf("token user=%q, want bea", id)
	}
	if id, _ := p.CurrentUserID(identity.WithUserID(ctx, "cal")); id != "cal" {
		t.Fatalf("context user=%q, want cal", id)
	}

	cfg.Token = "garbage"
	if id, _ := Principal(cfg).CurrentUserID(ctx); id != "ada" {
		t.Fatalf("fallback user=%q, want ada", id)
	}
}
