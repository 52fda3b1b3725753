package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"questguild/internal/apperr"
)

// parallel calls fn n times in parallel and returns the errors in call order.
func parallel(n int, fn func(k int) error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for k := 0; k < n; k++ {
		go func(k int) {
			defer wg.Done()
			errs[k] = fn(k)
		}(k)
	}
	wg.Wait()
	return errs
}

func TestConcurrentCompletionsHonorQuota(t *testing.T) {
	f := newFixture(t)
	ctx, c := f.login(t, "ana")

	const n = 12
	ids := make([]int64, n)
	for k := range ids {
		ids[k] = f.task(t, ctx, DifficultyVeryEasy, ImportanceNormal, testStart.Add(-time.Hour))
	}

	errs := parallel(n, func(k int) error {
		_, err := f.svc.CompleteTask(ctx, ids[k])
		return err
	})
	var ok, exhausted int
	for k, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.HasCode(err, apperr.CodeTaskQuotaExhausted):
			exhausted++
		default:
			t.Fatalf("complete %d: %v", k, err)
		}
	}
	if ok != 5 || exhausted != n-5 {
		t.Fatalf("ok=%d exhausted=%d, want 5 and %d", ok, exhausted, n-5)
	}

	from, to := QuotaRegular.Window(testStart, time.UTC)
	used, err := f.store.Completions.CountInWindow(context.Background(), c.ID,
		string(DifficultyVeryEasy), string(ImportanceNormal), from, to)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if used != 5 {
		t.Fatalf("stored completions=%d, want 5", used)
	}
	if got := f.character(t, c.ID).XP; got != 5*int64(TaskXP(DifficultyVeryEasy, ImportanceNormal)) {
		t.Fatalf("xp=%d", got)
	}
}

func TestConcurrentPurchasesNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx, c := f.login(t, "ana")
	f.giveCoins(t, c.ID, 500)

	const n = 10
	errs := parallel(n, func(int) error {
		_, err := f.svc.Purchase(ctx, "gloves")
		return err
	})
	var ok int
	for k, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.HasCode(err, apperr.CodeInsufficientCoins):
		default:
			t.Fatalf("purchase %d: %v", k, err)
		}
	}
	if ok != 4 {
		t.Fatalf("purchases=%d, want 4", ok)
	}
	if got := f.character(t, c.ID).Coins; got != 500-4*120 {
		t.Fatalf("coins=%d, want %d", got, 500-4*120)
	}
	items, err := f.store.Equipment.ListByCharacter(context.Background(), c.ID, false)
	if err != nil {
		t.Fatalf("list equipment: %v", err)
	}
	gloves := 0
	for _, e := range items {
		if e.ItemCode == "gloves" {
			gloves++
		}
	}
	if gloves != ok {
		t.Fatalf("gloves stored=%d, purchases=%d", gloves, ok)
	}
}

func TestConcurrentContributionsKeepPoolConsistent(t *testing.T) {
	f := newFixture(t)
	_, ctxs, chars := f.guildOf(t, "ana", "ben")
	m := f.startMission(t, ctxs[0])

	// Each member fires 8 boss hits and 8 other-task contributions; the
	// other-task counter caps at 6.
	const perKind = 8
	kinds := []ContributionKind{ContributionBossHit, ContributionOtherTask}
	var (
		mu      sync.Mutex
		applied = make(map[int64]int)
	)
	errs := parallel(len(ctxs)*len(kinds)*perKind, func(k int) error {
		member := k % len(ctxs)
		kind := kinds[(k/len(ctxs))%len(kinds)]
		res, err := f.svc.RecordContribution(ctxs[member], kind)
		if err != nil {
			return err
		}
		if res.Applied {
			mu.Lock()
			applied[chars[member].ID]++
			mu.Unlock()
		}
		return nil
	})
	for k, err := range errs {
		if err != nil {
			t.Fatalf("contribution %d: %v", k, err)
		}
	}

	rows, err := f.store.Missions.ListProgress(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	var dealt int64
	for _, p := range rows {
		if p.BossHits != perKind || p.OtherTasks != 6 {
			t.Fatalf("character %d counters boss=%d other=%d", p.CharacterID, p.BossHits, p.OtherTasks)
		}
		if p.DamageDealt != perKind*2+6*4 {
			t.Fatalf("character %d dealt %d", p.CharacterID, p.DamageDealt)
		}
		if applied[p.CharacterID] != perKind+6 {
			t.Fatalf("character %d applied %d", p.CharacterID, applied[p.CharacterID])
		}
		dealt += p.DamageDealt
	}

	cur, err := f.store.Missions.Get(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("mission get: %v", err)
	}
	if cur.CurrentHP != cur.MaxHP-dealt || cur.CurrentHP != 200-80 {
		t.Fatalf("hp=%d max=%d dealt=%d", cur.CurrentHP, cur.MaxHP, dealt)
	}
}
