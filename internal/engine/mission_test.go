package engine

import (
	"context"
	"testing"
	"time"

	"questguild/internal/apperr"
	"questguild/internal/notify"
	"questguild/internal/storage"
)

// guildOf creates a guild led by the first user with the rest as members.
func (f *fixture) guildOf(t *testing.T, users ...string) (*storage.Guild, []context.Context, []*storage.Character) {
	t.Helper()
	var (
		ctxs  []context.Context
		chars []*storage.Character
		g     *storage.Guild
	)
	for k, u := range users {
		ctx, c := f.login(t, u)
		ctxs = append(ctxs, ctx)
		chars = append(chars, c)
		var err error
		if k == 0 {
			g, err = f.svc.CreateGuild(ctx, "night watch")
		} else {
			_, err = f.svc.JoinGuild(ctx, g.ID)
		}
		if err != nil {
			t.Fatalf("guild setup for %s: %v", u, err)
		}
	}
	return g, ctxs, chars
}

func (f *fixture) startMission(t *testing.T, ctx context.Context) *storage.SpecialMission {
	t.Helper()
	m, err := f.svc.StartMission(ctx)
	if err != nil {
		t.Fatalf("start mission: %v", err)
	}
	return m
}

func TestStartMissionSeedsPool(t *testing.T) {
	f := newFixture(t)
	g, ctxs, _ := f.guildOf(t, "ana", "ben", "cy", "dee")

	_, err := f.svc.StartMission(ctxs[1])
	wantCode(t, err, apperr.CodeGuildNotLeader)

	m := f.startMission(t, ctxs[0])
	if m.MaxHP != 400 || m.CurrentHP != 400 || !m.EndsAt.Equal(testStart.Add(MissionDuration)) {
		t.Fatalf("mission=%+v", m)
	}
	rows, err := f.store.Missions.ListProgress(context.Background(), m.ID)
	if err != nil || len(rows) != 4 {
		t.Fatalf("progress rows=%d err=%v", len(rows), err)
	}

	_, err = f.svc.StartMission(ctxs[0])
	wantCode(t, err, apperr.CodeMissionAlreadyActive)
	if apperr.KindOf(err) != apperr.KindPrecondition {
		t.Fatalf("kind=%s", apperr.KindOf(err))
	}

	cur, err := f.store.Guilds.Get(context.Background(), g.ID)
	if err != nil || !cur.MissionActive {
		t.Fatalf("guild=%+v err=%v", cur, err)
	}
	err = f.svc.DisbandGuild(ctxs[1])
	wantCode(t, err, apperr.CodeGuildNotLeader)
	err = f.svc.DisbandGuild(ctxs[0])
	wantCode(t, err, apperr.CodeGuildMissionBlocking)
}

func TestContributionCaps(t *testing.T) {
	f := newFixture(t)
	_, ctxs, chars := f.guildOf(t, "ana")
	m := f.startMission(t, ctxs[0])

	for k := 0; k < 6; k++ {
		res, err := f.svc.RecordContribution(ctxs[0], ContributionShopPurchase)
		if err != nil {
			t.Fatalf("contribution %d: %v", k, err)
		}
		if res.Applied != (k < 5) {
			t.Fatalf("contribution %d applied=%v", k, res.Applied)
		}
	}
	p, err := f.store.Missions.Progress(context.Background(), m.ID, chars[0].ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.ShopPurchases != 5 || p.DamageDealt != 10 {
		t.Fatalf("progress=%+v", p)
	}
	view, err := f.svc.MissionProgress(ctxs[0])
	if err != nil || view.Mission.CurrentHP != 90 {
		t.Fatalf("view=%+v err=%v", view, err)
	}

	_, err = f.svc.RecordContribution(ctxs[0], ContributionKind("dance"))
	wantCode(t, err, apperr.CodeGuildInvalidInput)
}

func TestChatCountsOncePerDay(t *testing.T) {
	f := newFixture(t)
	_, ctxs, _ := f.guildOf(t, "ana")
	f.startMission(t, ctxs[0])

	first, err := f.svc.RecordChatMessage(ctxs[0], "morning all")
	if err != nil || !first.Applied {
		t.Fatalf("first=%+v err=%v", first, err)
	}
	second, err := f.svc.RecordChatMessage(ctxs[0], "still here")
	if err != nil || second.Applied {
		t.Fatalf("second=%+v err=%v", second, err)
	}
	f.clock.Advance(24 * time.Hour)
	third, err := f.svc.RecordChatMessage(ctxs[0], "new day")
	if err != nil || !third.Applied || third.MissionHP != 92 {
		t.Fatalf("third=%+v err=%v", third, err)
	}
	if got := f.notifier.count(notify.TypeChatMessage); got != 3 {
		t.Fatalf("chat events=%d, want 3", got)
	}
}

func TestChatWithoutMission(t *testing.T) {
	f := newFixture(t)
	_, ctxs, _ := f.guildOf(t, "ana")

	res, err := f.svc.RecordChatMessage(ctxs[0], "hello")
	if err != nil || res != nil {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if f.notifier.count(notify.TypeChatMessage) != 1 {
		t.Fatal("expected the message to be relayed")
	}
}

func TestExpiredMissionFinalizesLazily(t *testing.T) {
	f := newFixture(t)
	g, ctxs, _ := f.guildOf(t, "ana")
	f.startMission(t, ctxs[0])

	f.clock.Advance(MissionDuration + time.Hour)
	_, err := f.svc.RecordContribution(ctxs[0], ContributionBossHit)
	wantCode(t, err, apperr.CodeMissionClosed)

	view, err := f.svc.MissionProgress(ctxs[0])
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if view.Mission.Status != string(MissionCompleted) || view.Mission.Successful || view.Remaining != 0 {
		t.Fatalf("mission=%+v", view.Mission)
	}
	cur, err := f.store.Guilds.Get(context.Background(), g.ID)
	if err != nil || cur.MissionActive {
		t.Fatalf("guild=%+v err=%v", cur, err)
	}
	if c, err := f.store.Characters.Get(context.Background(), cur.LeaderCharacterID); err != nil || c.Coins != 0 {
		t.Fatalf("unexpected reward: %+v err=%v", c, err)
	}

	// The guild may try again.
	f.startMission(t, ctxs[0])
}

func TestDepletedMissionPaysMembers(t *testing.T) {
	f := newFixture(t)
	g, ctxs, chars := f.guildOf(t, "ana", "ben")
	m := f.startMission(t, ctxs[0])

	if _, err := f.store.Missions.ApplyDamage(context.Background(), m.ID, 198); err != nil {
		t.Fatalf("apply damage: %v", err)
	}
	res, err := f.svc.RecordContribution(ctxs[1], ContributionShopPurchase)
	if err != nil {
		t.Fatalf("contribution: %v", err)
	}
	if !res.Completed || res.MissionHP != 0 || res.Rewards[chars[0].ID] != 100 || res.Rewards[chars[1].ID] != 100 {
		t.Fatalf("result=%+v", res)
	}
	for _, c := range chars {
		if got := f.character(t, c.ID); got.Coins != 100 {
			t.Fatalf("%s coins=%d, want 100", got.Name, got.Coins)
		}
	}

	done, err := f.store.Missions.Get(context.Background(), m.ID)
	if err != nil || !done.Successful || done.Status != string(MissionCompleted) {
		t.Fatalf("mission=%+v err=%v", done, err)
	}
	cur, err := f.store.Guilds.Get(context.Background(), g.ID)
	if err != nil || cur.MissionActive {
		t.Fatalf("guild=%+v err=%v", cur, err)
	}
	if f.notifier.count(notify.TypeMissionCompleted) != 1 {
		t.Fatal("expected a completion notification")
	}
	_, err = f.svc.RecordContribution(ctxs[0], ContributionBossHit)
	wantCode(t, err, apperr.CodeMissionNotFound)
}

func TestTaskCompletionFeedsMission(t *testing.T) {
	f := newFixture(t)
	_, ctxs, chars := f.guildOf(t, "ana")
	m := f.startMission(t, ctxs[0])

	easy := f.task(t, ctxs[0], DifficultyEasy, ImportanceNormal, testStart)
	hard := f.task(t, ctxs[0], DifficultyHard, ImportanceNormal, testStart)
	for _, id := range []int64{easy, hard} {
		if _, err := f.svc.CompleteTask(ctxs[0], id); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	p, err := f.store.Missions.Progress(context.Background(), m.ID, chars[0].ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.EasyTasks != 1 || p.OtherTasks != 1 || p.DamageDealt != 5 {
		t.Fatalf("progress=%+v", p)
	}
}

func TestLateJoinerGetsProgressRow(t *testing.T) {
	f := newFixture(t)
	g, ctxs, _ := f.guildOf(t, "ana")
	m := f.startMission(t, ctxs[0])

	ben, _ := f.login(t, "ben")
	if _, err := f.svc.JoinGuild(ben, g.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	res, err := f.svc.RecordContribution(ben, ContributionBossHit)
	if err != nil || !res.Applied {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	rows, err := f.store.Missions.ListProgress(context.Background(), m.ID)
	if err != nil || len(rows) != 2 {
		t.Fatalf("rows=%d err=%v", len(rows), err)
	}
	// The pool is sized at start only.
	if res.MissionHP != 98 {
		t.Fatalf("hp=%d, want 98", res.MissionHP)
	}
}

func TestNoUnresolvedBonus(t *testing.T) {
	f := newFixture(t)
	_, ctxs, _ := f.guildOf(t, "ana", "ben")
	f.startMission(t, ctxs[0])

	res, err := f.svc.CheckNoUnresolved(ctxs[0])
	if err != nil || res.Applied {
		t.Fatalf("before any completion: res=%+v err=%v", res, err)
	}

	id := f.task(t, ctxs[0], DifficultyEasy, ImportanceNormal, testStart)
	if _, err := f.svc.CompleteTask(ctxs[0], id); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res, err = f.svc.CheckNoUnresolved(ctxs[0]); err != nil || !res.Applied || res.Damage != 10 {
		t.Fatalf("bonus: res=%+v err=%v", res, err)
	}
	if res, err = f.svc.CheckNoUnresolved(ctxs[0]); err != nil || res.Applied {
		t.Fatalf("second bonus: res=%+v err=%v", res, err)
	}

	done := f.task(t, ctxs[1], DifficultyEasy, ImportanceNormal, testStart)
	if _, err := f.svc.CompleteTask(ctxs[1], done); err != nil {
		t.Fatalf("complete: %v", err)
	}
	f.task(t, ctxs[1], DifficultyEasy, ImportanceNormal, testStart.Add(-time.Hour))
	if res, err = f.svc.CheckNoUnresolved(ctxs[1]); err != nil || res.Applied {
		t.Fatalf("unresolved member: res=%+v err=%v", res, err)
	}
}

func TestGuildMembership(t *testing.T) {
	f := newFixture(t)
	g, ctxs, chars := f.guildOf(t, "ana", "ben")

	_, err := f.svc.CreateGuild(ctxs[1], "second")
	wantCode(t, err, apperr.CodeGuildAlreadyMember)
	cy, _ := f.login(t, "cy")
	_, err = f.svc.JoinGuild(cy, 999)
	wantCode(t, err, apperr.CodeGuildNotFound)
	_, err = f.svc.MissionProgress(cy)
	wantCode(t, err, apperr.CodeGuildNotMember)

	members, err := f.svc.GuildMembers(ctxs[1])
	if err != nil || len(members) != 2 {
		t.Fatalf("members=%+v err=%v", members, err)
	}
	if !members[0].Leader || members[0].CharacterID != chars[0].ID || members[1].Leader {
		t.Fatalf("members=%+v", members)
	}

	if err := f.svc.InviteToGuild(ctxs[0], chars[1].ID); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if f.notifier.count(notify.TypeGuildInvite) != 1 {
		t.Fatal("expected an invite event")
	}

	// Leadership passes on, and the last one out closes the guild.
	if err := f.svc.LeaveGuild(ctxs[0]); err != nil {
		t.Fatalf("leave: %v", err)
	}
	cur, err := f.store.Guilds.Get(context.Background(), g.ID)
	if err != nil || cur.LeaderCharacterID != chars[1].ID || !cur.Active {
		t.Fatalf("guild=%+v err=%v", cur, err)
	}
	if err := f.svc.LeaveGuild(ctxs[1]); err != nil {
		t.Fatalf("leave: %v", err)
	}
	_, err = f.svc.JoinGuild(cy, g.ID)
	wantCode(t, err, apperr.CodeGuildInactive)
}

func TestLastMemberLeavingClosesMission(t *testing.T) {
	f := newFixture(t)
	_, ctxs, _ := f.guildOf(t, "ana")
	m := f.startMission(t, ctxs[0])

	if err := f.svc.LeaveGuild(ctxs[0]); err != nil {
		t.Fatalf("leave: %v", err)
	}
	got, err := f.store.Missions.Get(context.Background(), m.ID)
	if err != nil || got.Status != string(MissionCompleted) || got.Successful {
		t.Fatalf("mission=%+v err=%v", got, err)
	}
}

func TestDisbandGuild(t *testing.T) {
	f := newFixture(t)
	g, ctxs, _ := f.guildOf(t, "ana", "ben")

	if err := f.svc.DisbandGuild(ctxs[0]); err != nil {
		t.Fatalf("disband: %v", err)
	}
	_, err := f.svc.CurrentGuild(ctxs[1])
	wantCode(t, err, apperr.CodeGuildNotMember)
	cur, err := f.store.Guilds.Get(context.Background(), g.ID)
	if err != nil || cur.Active {
		t.Fatalf("guild=%+v err=%v", cur, err)
	}
}

func TestDisbandRechecksLeaderUnderLock(t *testing.T) {
	f := newFixture(t)
	g, ctxs, chars := f.guildOf(t, "ana", "ben")

	// Hold the guild while leadership moves so the disband has to wait on
	// the lock after reading the guild.
	unlock := f.svc.lockGuild(g.ID)
	done := make(chan error, 1)
	go func() { done <- f.svc.DisbandGuild(ctxs[0]) }()
	time.Sleep(20 * time.Millisecond)
	if err := f.store.Guilds.SetLeader(context.Background(), g.ID, chars[1].ID); err != nil {
		unlock()
		t.Fatalf("set leader: %v", err)
	}
	unlock()

	wantCode(t, <-done, apperr.CodeGuildNotLeader)
	cur, err := f.store.Guilds.Get(context.Background(), g.ID)
	if err != nil || !cur.Active {
		t.Fatalf("guild=%+v err=%v", cur, err)
	}

	if err := f.svc.DisbandGuild(ctxs[1]); err != nil {
		t.Fatalf("disband by new leader: %v", err)
	}
}

func TestGuildMissionMembersOnly(t *testing.T) {
	f := newFixture(t)
	g, ctxs, _ := f.guildOf(t, "ana", "ben")
	m := f.startMission(t, ctxs[0])

	view, err := f.svc.GuildMission(ctxs[1], g.ID)
	if err != nil || view.Mission.ID != m.ID || len(view.Progress) != 2 {
		t.Fatalf("member view=%+v err=%v", view, err)
	}

	cy, _ := f.login(t, "cy")
	_, err = f.svc.GuildMission(cy, g.ID)
	wantCode(t, err, apperr.CodeGuildNotMember)
	_, err = f.svc.GuildMission(cy, 999)
	wantCode(t, err, apperr.CodeGuildNotFound)

	if _, err := f.svc.CreateGuild(cy, "dawn patrol"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = f.svc.GuildMission(cy, g.ID)
	wantCode(t, err, apperr.CodeGuildNotMember)
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	_, expired, _ := f.guildOf(t, "ana")
	f.startMission(t, expired[0])
	f.task(t, expired[0], DifficultyEasy, ImportanceNormal, testStart)

	f.clock.Advance(MissionDuration + time.Hour)
	_, running, _ := f.guildOf(t, "ben")
	f.startMission(t, running[0])
	id := f.task(t, running[0], DifficultyEasy, ImportanceNormal, f.clock.Now())
	if _, err := f.svc.CompleteTask(running[0], id); err != nil {
		t.Fatalf("complete: %v", err)
	}

	rep, err := f.svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if rep.Overdue != 1 || rep.MissionsExpired != 1 || rep.BonusesGranted != 1 {
		t.Fatalf("report=%+v", rep)
	}
}
