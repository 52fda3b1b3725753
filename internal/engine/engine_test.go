package engine

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"questguild/internal/apperr"
	"questguild/internal/identity"
	"questguild/internal/notify"
	"questguild/internal/random"
	"questguild/internal/storage"
)

// Wednesday, so day and week windows are easy to reason about.
var testStart = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev notify.Event) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) count(typ string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Type == typ {
			c++
		}
	}
	return c
}

type fixture struct {
	svc      *Service
	store    *storage.Store
	clock    *testClock
	notifier *recordingNotifier
}

func newFixture(t *testing.T, dice ...int) *fixture {
	t.Helper()
	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{store: store, clock: &testClock{now: testStart}, notifier: &recordingNotifier{}}
	svc, err := NewService(Options{
		Store:    store,
		Identity: identity.Context{},
		Notifier: f.notifier,
		Dice:     random.NewScript(dice...),
		Location: time.UTC,
		Now:      f.clock.Now,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

// login registers user and returns a context acting as them.
func (f *fixture) login(t *testing.T, user string) (context.Context, *storage.Character) {
	t.Helper()
	ctx := identity.WithUserID(context.Background(), user)
	c, err := f.svc.Register(ctx, user)
	if err != nil {
		t.Fatalf("register %s: %v", user, err)
	}
	return ctx, c
}

func (f *fixture) character(t *testing.T, id int64) *storage.Character {
	t.Helper()
	c, err := f.store.Characters.Get(context.Background(), id)
	if err != nil || c == nil {
		t.Fatalf("get character %d: %v", id, err)
	}
	return c
}

// grantXP awards xp as a completion would, level-ups included.
func (f *fixture) grantXP(t *testing.T, characterID int64, xp int64) *progress {
	t.Helper()
	ctx := context.Background()
	var p *progress
	err := f.store.InTx(ctx, func(r *storage.Repos) error {
		c, err := loadCharacter(ctx, r, characterID)
		if err != nil {
			return err
		}
		p, err = f.svc.awardXP(ctx, r, c, xp, f.clock.Now())
		return err
	})
	if err != nil {
		t.Fatalf("grant xp: %v", err)
	}
	return p
}

func (f *fixture) task(t *testing.T, ctx context.Context, d Difficulty, i Importance, at time.Time) int64 {
	t.Helper()
	res, err := f.svc.CreateTask(ctx, CreateTaskInput{Name: "task", Difficulty: d, Importance: i, ScheduledAt: at})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return res.TaskIDs[0]
}

func wantCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if !apperr.HasCode(err, code) {
		t.Fatalf("err=%v, want code %s", err, code)
	}
}

func TestXPTables(t *testing.T) {
	for level, want := range map[int]int64{1: 200, 2: 500, 3: 1250, 4: 3125} {
		if got := RequiredXP(level); got != want {
			t.Fatalf("RequiredXP(%d)=%d, want %d", level, got, want)
		}
	}
	if got := CumulativeXP(3); got != 700 {
		t.Fatalf("CumulativeXP(3)=%d, want 700", got)
	}
	cases := []struct {
		xp   int64
		want int
	}{{0, 1}, {199, 1}, {200, 2}, {699, 2}, {700, 3}, {1950, 4}}
	for _, tc := range cases {
		if got := LevelForXP(tc.xp); got != tc.want {
			t.Fatalf("LevelForXP(%d)=%d, want %d", tc.xp, got, tc.want)
		}
	}
	for level := 1; level <= MaxLevel; level++ {
		if got := LevelForXP(CumulativeXP(level)); got != level {
			t.Fatalf("LevelForXP(CumulativeXP(%d))=%d", level, got)
		}
		if level > 1 && CumulativeXP(level) <= CumulativeXP(level-1) {
			t.Fatalf("CumulativeXP(%d)=%d not above level %d", level, CumulativeXP(level), level-1)
		}
	}
	if CumulativeXP(MaxLevel) == math.MaxInt64 {
		t.Fatalf("CumulativeXP(%d) saturated", MaxLevel)
	}
	if got := LevelForXP(CumulativeXP(MaxLevel) - 1); got != MaxLevel-1 {
		t.Fatalf("LevelForXP just below max=%d, want %d", got, MaxLevel-1)
	}
	if got := LevelForXP(math.MaxInt64); got != MaxLevel {
		t.Fatalf("LevelForXP(huge)=%d, want %d", got, MaxLevel)
	}
}

func TestTaskXPAndRewards(t *testing.T) {
	if got := TaskXP(DifficultyExtreme, ImportanceImportant); got != 23 {
		t.Fatalf("extreme/important=%d, want 23", got)
	}
	if got := TaskXP(DifficultyVeryEasy, ImportanceNormal); got != 2 {
		t.Fatalf("very_easy/normal=%d, want 2", got)
	}
	if got := PowerPointGrant(2); got != 40 {
		t.Fatalf("PP(2)=%d", got)
	}
	if got := PowerPointGrant(3); got != 70 {
		t.Fatalf("PP(3)=%d", got)
	}
	if got := LevelUpReward(1, 3); got != 110 {
		t.Fatalf("LevelUpReward(1,3)=%d, want 110", got)
	}
	if got := BossReward(2); got != 288 {
		t.Fatalf("BossReward(2)=%d, want 288", got)
	}
	if got := WithBonus(200, 10); got != 220 {
		t.Fatalf("WithBonus=%d, want 220", got)
	}
	if Title(4) != "Beginner" || Title(5) != "Apprentice" || Title(49) != "Champion" || Title(50) != "Grandmaster" {
		t.Fatal("unexpected title breakpoints")
	}
}

func TestQuotaClasses(t *testing.T) {
	cases := []struct {
		d    Difficulty
		i    Importance
		want QuotaClass
	}{
		{DifficultyVeryEasy, ImportanceNormal, QuotaRegular},
		{DifficultyEasy, ImportanceImportant, QuotaRegular},
		{DifficultyHard, ImportanceNormal, QuotaHard},
		{DifficultyEasy, ImportanceVeryImportant, QuotaHard},
		{DifficultyExtreme, ImportanceVeryImportant, QuotaExtreme},
		{DifficultyExtreme, ImportanceSpecial, QuotaSpecial},
	}
	for _, tc := range cases {
		if got := QuotaClassFor(tc.d, tc.i); got != tc.want {
			t.Fatalf("QuotaClassFor(%s,%s)=%s, want %s", tc.d, tc.i, got, tc.want)
		}
	}

	from, to := QuotaExtreme.Window(testStart, time.UTC)
	if from.Weekday() != time.Monday || to.Sub(from) != 7*24*time.Hour {
		t.Fatalf("week window %v..%v", from, to)
	}
	if !from.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week starts %v", from)
	}
	from, _ = QuotaSpecial.Window(testStart, time.UTC)
	if from.Day() != 1 || from.Month() != time.March {
		t.Fatalf("month starts %v", from)
	}
}

func TestRegularQuotaResetsNextDay(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.login(t, "ana")

	var ids []int64
	for k := 0; k < 6; k++ {
		ids = append(ids, f.task(t, ctx, DifficultyVeryEasy, ImportanceNormal, testStart.Add(-time.Hour)))
	}
	for k := 0; k < 5; k++ {
		res, err := f.svc.CompleteTask(ctx, ids[k])
		if err != nil {
			t.Fatalf("complete %d: %v", k, err)
		}
		if res.QuotaUsed != k+1 || res.QuotaLimit != 5 {
			t.Fatalf("quota %d/%d", res.QuotaUsed, res.QuotaLimit)
		}
	}
	_, err := f.svc.CompleteTask(ctx, ids[5])
	wantCode(t, err, apperr.CodeTaskQuotaExhausted)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("kind=%s", apperr.KindOf(err))
	}

	f.clock.Advance(24 * time.Hour)
	if _, err := f.svc.CompleteTask(ctx, ids[5]); err != nil {
		t.Fatalf("complete next day: %v", err)
	}
}

func TestQuotaCountsPerPair(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.login(t, "ana")
	at := testStart.Add(-time.Hour)

	for k := 0; k < 5; k++ {
		id := f.task(t, ctx, DifficultyVeryEasy, ImportanceNormal, at)
		if _, err := f.svc.CompleteTask(ctx, id); err != nil {
			t.Fatalf("very_easy/normal %d: %v", k, err)
		}
	}
	res, err := f.svc.CompleteTask(ctx, f.task(t, ctx, DifficultyEasy, ImportanceImportant, at))
	if err != nil {
		t.Fatalf("easy/important after full very_easy/normal: %v", err)
	}
	if res.QuotaClass != QuotaRegular || res.QuotaUsed != 1 {
		t.Fatalf("easy/important quota %s %d/%d", res.QuotaClass, res.QuotaUsed, res.QuotaLimit)
	}
	_, err = f.svc.CompleteTask(ctx, f.task(t, ctx, DifficultyVeryEasy, ImportanceNormal, at))
	wantCode(t, err, apperr.CodeTaskQuotaExhausted)

	for k := 0; k < 2; k++ {
		if _, err := f.svc.CompleteTask(ctx, f.task(t, ctx, DifficultyHard, ImportanceNormal, at)); err != nil {
			t.Fatalf("hard/normal %d: %v", k, err)
		}
	}
	res, err = f.svc.CompleteTask(ctx, f.task(t, ctx, DifficultyVeryEasy, ImportanceVeryImportant, at))
	if err != nil {
		t.Fatalf("very_easy/very_important after full hard/normal: %v", err)
	}
	if res.QuotaClass != QuotaHard || res.QuotaUsed != 1 || res.QuotaLimit != 2 {
		t.Fatalf("very_easy/very_important quota %s %d/%d", res.QuotaClass, res.QuotaUsed, res.QuotaLimit)
	}
	_, err = f.svc.CompleteTask(ctx, f.task(t, ctx, DifficultyHard, ImportanceNormal, at))
	wantCode(t, err, apperr.CodeTaskQuotaExhausted)
}

func TestCompletionWindow(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.login(t, "ana")

	old := f.task(t, ctx, DifficultyEasy, ImportanceNormal, testStart.Add(-4*24*time.Hour))
	_, err := f.svc.CompleteTask(ctx, old)
	wantCode(t, err, apperr.CodeTaskOutsideWindow)
	task, err := f.store.Tasks.Get(context.Background(), old)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if task.Status != string(StatusIncomplete) {
		t.Fatalf("status=%s, want incomplete", task.Status)
	}

	recent := f.task(t, ctx, DifficultyEasy, ImportanceNormal, testStart.Add(-2*24*time.Hour))
	if _, err := f.svc.CompleteTask(ctx, recent); err != nil {
		t.Fatalf("complete recent: %v", err)
	}

	future := f.task(t, ctx, DifficultyEasy, ImportanceNormal, testStart.Add(time.Hour))
	_, err = f.svc.CompleteTask(ctx, future)
	wantCode(t, err, apperr.CodeTaskFutureCompletion)
}

func TestCompletionPreconditions(t *testing.T) {
	f := newFixture(t)
	ana, _ := f.login(t, "ana")
	ben, _ := f.login(t, "ben")

	id := f.task(t, ana, DifficultyEasy, ImportanceNormal, testStart)

	_, err := f.svc.CompleteTask(ana, 999)
	wantCode(t, err, apperr.CodeTaskNotFound)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("kind=%s", apperr.KindOf(err))
	}
	_, err = f.svc.CompleteTask(ben, id)
	wantCode(t, err, apperr.CodeTaskNotOwned)

	if _, err := f.svc.CompleteTask(ana, id); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = f.svc.CompleteTask(ana, id)
	wantCode(t, err, apperr.CodeTaskInvalidTransition)

	_, err = f.svc.CompleteTask(context.Background(), id)
	wantCode(t, err, apperr.CodeNotLoggedIn)
	if apperr.KindOf(err) != apperr.KindPrecondition {
		t.Fatalf("kind=%s", apperr.KindOf(err))
	}
}

func TestCompletionLevelsUpAndSpawnsBoss(t *testing.T) {
	f := newFixture(t)
	ctx, c := f.login(t, "ana")

	id := f.task(t, ctx, DifficultyExtreme, ImportanceImportant, testStart)
	res, err := f.svc.CompleteTask(ctx, id)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.XPAwarded != 23 || res.XPTotal != 23 || res.LevelUp {
		t.Fatalf("result=%+v", res)
	}

	f.grantXP(t, c.ID, 167) // 190 total, still level 1
	id = f.task(t, ctx, DifficultyEasy, ImportanceVeryImportant, testStart)
	res, err = f.svc.CompleteTask(ctx, id)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !res.LevelUp || res.LevelAfter != 2 || res.PowerGained != 40 {
		t.Fatalf("result=%+v", res)
	}
	if res.Boss == nil || res.Boss.MaxHP != 200 || res.Boss.Level != 2 {
		t.Fatalf("boss=%+v", res.Boss)
	}
	if got := f.character(t, c.ID); got.PowerPoints != 40 || !got.StageStartedAt.Equal(testStart) {
		t.Fatalf("character=%+v", got)
	}
	if f.notifier.count(notify.TypeLevelUp) != 1 || f.notifier.count(notify.TypeBossAvailable) != 1 {
		t.Fatal("expected level-up and boss notifications")
	}
}

func TestMultiLevelJumpGrantsEveryLevel(t *testing.T) {
	f := newFixture(t)
	_, c := f.login(t, "ana")

	p := f.grantXP(t, c.ID, 700)
	if p.LevelBefore != 1 || p.LevelAfter != 3 || p.PowerGained != 110 {
		t.Fatalf("progress=%+v", p)
	}
	// The first boss belongs to the level reached.
	if p.Boss == nil || p.Boss.Level != 3 || p.Boss.MaxHP != 500 {
		t.Fatalf("boss=%+v", p.Boss)
	}
}

func TestRecurrenceMaterializesInstances(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.login(t, "ana")

	res, err := f.svc.CreateTask(ctx, CreateTaskInput{
		Name:        "stretch",
		Difficulty:  DifficultyEasy,
		Importance:  ImportanceNormal,
		ScheduledAt: testStart,
		Recurrence:  &Recurrence{Interval: 2, Unit: RepeatWeek, Until: testStart.AddDate(0, 0, 70)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(res.TaskIDs) != 6 {
		t.Fatalf("instances=%d, want 6", len(res.TaskIDs))
	}

	_, err = f.svc.CreateTask(ctx, CreateTaskInput{
		Name:        "daily",
		Difficulty:  DifficultyEasy,
		Importance:  ImportanceNormal,
		ScheduledAt: testStart,
		Recurrence:  &Recurrence{Interval: 1, Unit: RepeatDay, Until: testStart.AddDate(0, 0, 400)},
	})
	wantCode(t, err, apperr.CodeTaskInvalidInput)
}

func TestDeleteRecurringCascades(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.login(t, "ana")

	res, err := f.svc.CreateTask(ctx, CreateTaskInput{
		Name:        "water plants",
		Difficulty:  DifficultyVeryEasy,
		Importance:  ImportanceNormal,
		ScheduledAt: testStart,
		Recurrence:  &Recurrence{Interval: 1, Unit: RepeatDay, Until: testStart.AddDate(0, 0, 6)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(res.TaskIDs) != 7 {
		t.Fatalf("instances=%d, want 7", len(res.TaskIDs))
	}

	del, err := f.svc.DeleteTask(ctx, res.TaskIDs[0])
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if del.Deleted != 7 {
		t.Fatalf("deleted=%d, want 7", del.Deleted)
	}
	left, err := f.svc.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("left=%d", len(left))
	}
}

func TestDeleteRejectsCompleted(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.login(t, "ana")
	id := f.task(t, ctx, DifficultyEasy, ImportanceNormal, testStart)
	if _, err := f.svc.CompleteTask(ctx, id); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err := f.svc.DeleteTask(ctx, id)
	wantCode(t, err, apperr.CodeTaskTerminal)
}

func TestPauseOnlyForRecurring(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.login(t, "ana")

	single := f.task(t, ctx, DifficultyEasy, ImportanceNormal, testStart)
	_, err := f.svc.PauseTask(ctx, single)
	wantCode(t, err, apperr.CodeTaskNotRecurring)

	res, err := f.svc.CreateTask(ctx, CreateTaskInput{
		Name:        "run",
		Difficulty:  DifficultyHard,
		Importance:  ImportanceNormal,
		ScheduledAt: testStart,
		Recurrence:  &Recurrence{Interval: 1, Unit: RepeatWeek, Until: testStart.AddDate(0, 0, 14)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := res.TaskIDs[0]
	task, err := f.svc.PauseTask(ctx, id)
	if err != nil || task.Status != string(StatusPaused) {
		t.Fatalf("pause: %v %+v", err, task)
	}
	_, err = f.svc.CompleteTask(ctx, id)
	wantCode(t, err, apperr.CodeTaskInvalidTransition)
	if task, err = f.svc.ResumeTask(ctx, id); err != nil || task.Status != string(StatusActive) {
		t.Fatalf("resume: %v %+v", err, task)
	}

	if _, err := f.svc.CancelTask(ctx, single); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = f.svc.CancelTask(ctx, single)
	wantCode(t, err, apperr.CodeTaskTerminal)
	name := "renamed"
	_, err = f.svc.EditTask(ctx, EditTaskInput{ID: single, Name: &name})
	wantCode(t, err, apperr.CodeTaskTerminal)
}

func TestEditRecomputesXP(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.login(t, "ana")
	id := f.task(t, ctx, DifficultyEasy, ImportanceNormal, testStart)

	d := DifficultyExtreme
	task, err := f.svc.EditTask(ctx, EditTaskInput{ID: id, Difficulty: &d})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if task.XPValue != 21 {
		t.Fatalf("xp=%d, want 21", task.XPValue)
	}
}

func TestListMarksOverdue(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.login(t, "ana")
	f.task(t, ctx, DifficultyEasy, ImportanceNormal, testStart)
	f.clock.Advance(4 * 24 * time.Hour)

	tasks, err := f.svc.ListTasks(ctx, StatusIncomplete)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("incomplete=%d, want 1", len(tasks))
	}
	st, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Counted != 1 || st.SuccessRate != 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestAchievements(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.login(t, "ana")

	earned := func() map[string]bool {
		list, err := f.svc.Achievements(ctx)
		if err != nil {
			t.Fatalf("achievements: %v", err)
		}
		m := make(map[string]bool)
		for _, a := range list {
			m[a.ID] = a.Earned
		}
		return m
	}
	if earned()["first_task"] {
		t.Fatal("first_task earned too early")
	}
	id := f.task(t, ctx, DifficultyEasy, ImportanceNormal, testStart)
	if _, err := f.svc.CompleteTask(ctx, id); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !earned()["first_task"] {
		t.Fatal("expected first_task")
	}
}
